package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"review-reply-automation/internal/client"
	"review-reply-automation/internal/config"
	"review-reply-automation/internal/domain"
)

// ToolCaller invokes a tool on a named MCP server and returns its JSON payload.
// CallToolOnce never resends a request that may have reached the server.
type ToolCaller interface {
	CallTool(ctx context.Context, serverName, toolName string, args map[string]any) ([]byte, error)
	CallToolOnce(ctx context.Context, serverName, toolName string, args map[string]any) ([]byte, error)
}

// Field aliases accepted from automation servers, in lookup order.
var (
	refKeys      = []string{"ref", "id", "review_id", "card_id"}
	authorKeys   = []string{"author", "nickname", "author_name", "name"}
	ratingKeys   = []string{"rating", "star", "stars", "score"}
	textKeys     = []string{"text", "content", "review_text", "comment"}
	orderIDKeys  = []string{"order_id", "order_number", "orderId"}
	menuKeys     = []string{"order_menu", "menu", "menus"}
	deliveryKeys = []string{"delivery_note", "delivery_review", "delivery"}
	dateKeys     = []string{"date", "review_date", "created_at", "written_at"}
	outcomeKeys  = []string{"outcome", "status", "result"}
	wordKeys     = []string{"word", "forbidden_word", "detail"}
	messageKeys  = []string{"message", "error", "reason"}
)

// MCPAdapter drives one store's storefront through an MCP automation server.
type MCPAdapter struct {
	caller    ToolCaller
	server    string
	storeCode string
	tools     config.ToolNames
	loc       *time.Location
	now       func() time.Time
}

// NewMCPAdapter creates an adapter bound to one registered server.
func NewMCPAdapter(caller ToolCaller, server, storeCode string, tools config.ToolNames, loc *time.Location) *MCPAdapter {
	if loc == nil {
		loc = time.UTC
	}
	return &MCPAdapter{
		caller:    caller,
		server:    server,
		storeCode: storeCode,
		tools:     tools,
		loc:       loc,
		now:       time.Now,
	}
}

func (a *MCPAdapter) ListPendingReviews(ctx context.Context) ([]domain.RawReview, error) {
	payload, err := a.caller.CallTool(ctx, a.server, a.tools.ListPending, map[string]any{
		"store_code": a.storeCode,
	})
	if err != nil {
		return nil, fmt.Errorf("list pending reviews: %w", err)
	}
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("list pending reviews: invalid json payload")
	}

	list := gjson.ParseBytes(payload)
	if !list.IsArray() {
		for _, key := range []string{"reviews", "items", "data"} {
			if v := list.Get(key); v.IsArray() {
				list = v
				break
			}
		}
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("list pending reviews: no review array in payload")
	}

	var reviews []domain.RawReview
	list.ForEach(func(_, v gjson.Result) bool {
		reviews = append(reviews, a.parseReview(v))
		return true
	})
	return reviews, nil
}

func (a *MCPAdapter) ExtractFields(ctx context.Context, ref string) (domain.RawReview, error) {
	payload, err := a.caller.CallTool(ctx, a.server, a.tools.ExtractFields, map[string]any{
		"store_code": a.storeCode,
		"ref":        ref,
	})
	if err != nil {
		return domain.RawReview{}, fmt.Errorf("extract fields: %w", err)
	}
	if !gjson.ValidBytes(payload) {
		return domain.RawReview{}, fmt.Errorf("extract fields: invalid json payload")
	}

	v := gjson.ParseBytes(payload)
	if r := v.Get("review"); r.IsObject() {
		v = r
	}
	review := a.parseReview(v)
	if review.Ref == "" {
		review.Ref = ref
	}
	review.Partial = false
	return review, nil
}

func (a *MCPAdapter) SubmitReply(ctx context.Context, ref, text string) (SubmitOutcome, error) {
	payload, err := a.caller.CallToolOnce(ctx, a.server, a.tools.SubmitReply, map[string]any{
		"store_code": a.storeCode,
		"ref":        ref,
		"text":       text,
	})
	if err != nil {
		var toolErr *client.ToolError
		if errors.As(err, &toolErr) {
			return SubmitOutcome{Kind: OutcomeOtherFailure, Message: toolErr.Message}, nil
		}
		return SubmitOutcome{}, fmt.Errorf("submit reply: %w", err)
	}
	return parseOutcome(payload), nil
}

func (a *MCPAdapter) parseReview(v gjson.Result) domain.RawReview {
	r := domain.RawReview{
		Ref:          firstString(v, refKeys),
		StoreCode:    a.storeCode,
		Author:       firstString(v, authorKeys),
		Text:         firstString(v, textKeys),
		OrderID:      firstString(v, orderIDKeys),
		OrderMenu:    joinedString(v, menuKeys),
		DeliveryNote: firstString(v, deliveryKeys),
		Partial:      v.Get("partial").Bool(),
	}
	if rating := first(v, ratingKeys); rating.Exists() {
		r.Rating = int(rating.Int())
		if r.Rating < 0 || r.Rating > 5 {
			r.Rating = 0
		}
	}
	if d := firstString(v, dateKeys); d != "" {
		r.Date = ParseReviewDate(d, a.now().In(a.loc))
	}
	if (r.Author == "" || r.Rating == 0) && r.Ref != "" {
		r.Partial = true
	}
	return r
}

func parseOutcome(payload []byte) SubmitOutcome {
	if !gjson.ValidBytes(payload) || !gjson.ParseBytes(payload).IsObject() {
		return SubmitOutcome{Kind: normalizeKind(string(payload)), Message: strings.TrimSpace(string(payload))}
	}
	v := gjson.ParseBytes(payload)
	out := SubmitOutcome{
		Kind:    normalizeKind(firstString(v, outcomeKeys)),
		Message: firstString(v, messageKeys),
	}
	if out.Kind == OutcomeForbiddenContent {
		out.Word = firstString(v, wordKeys)
	}
	return out
}

func normalizeKind(s string) OutcomeKind {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESS", "OK", "ANSWERED":
		return OutcomeSuccess
	case "API_ERROR":
		return OutcomeAPIError
	case "FORBIDDEN_NAME":
		return OutcomeForbiddenName
	case "FORBIDDEN_CONTENT", "FORBIDDEN_WORD":
		return OutcomeForbiddenContent
	default:
		return OutcomeOtherFailure
	}
}

func first(v gjson.Result, keys []string) gjson.Result {
	for _, k := range keys {
		if r := v.Get(k); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

func firstString(v gjson.Result, keys []string) string {
	return strings.TrimSpace(first(v, keys).String())
}

func joinedString(v gjson.Result, keys []string) string {
	r := first(v, keys)
	if !r.IsArray() {
		return strings.TrimSpace(r.String())
	}
	var parts []string
	r.ForEach(func(_, item gjson.Result) bool {
		if s := strings.TrimSpace(item.String()); s != "" {
			parts = append(parts, s)
		}
		return true
	})
	return strings.Join(parts, ", ")
}
