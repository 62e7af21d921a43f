package processor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"review-reply-automation/internal/domain"
	"review-reply-automation/internal/metrics"
	"review-reply-automation/internal/pipeline"
	"review-reply-automation/internal/storefront"
)

// DefaultMitigationRetries bounds resubmissions after content rejections.
const DefaultMitigationRetries = 2

// ReplyLoop produces a reply through the generation retry loop.
type ReplyLoop interface {
	Run(ctx context.Context, req pipeline.GenerateRequest) pipeline.Outcome
}

// SubmitRequest is a reply ready for submission along with the generation
// state needed to regenerate it.
type SubmitRequest struct {
	Ref      string
	Reply    string
	Generate pipeline.GenerateRequest
}

// SubmitResult is the terminal result of the submission loop.
type SubmitResult struct {
	// Status is ANSWERED, SUBMISSION_ERROR, FAILED or FORBIDDEN_CONTENT.
	Status domain.Status
	// Reply is the last text submitted.
	Reply       string
	Reason      string
	Outcomes    []storefront.SubmitOutcome
	Mitigations int
	// Err is set when the storefront could not be reached.
	Err error
}

// Submitter submits replies and mitigates content rejections.
type Submitter struct {
	adapter        storefront.Adapter
	loop           ReplyLoop
	maxMitigations int
}

// NewSubmitter creates a submitter. maxMitigations <= 0 uses the default.
func NewSubmitter(adapter storefront.Adapter, loop ReplyLoop, maxMitigations int) *Submitter {
	if maxMitigations <= 0 {
		maxMitigations = DefaultMitigationRetries
	}
	return &Submitter{adapter: adapter, loop: loop, maxMitigations: maxMitigations}
}

// Submit posts req.Reply and reacts to the storefront's verdict until the
// reply is accepted, a failure is final or the mitigation bound is reached.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) SubmitResult {
	reply := req.Reply
	gen := req.Generate
	var res SubmitResult

	for {
		res.Reply = reply
		out, err := s.adapter.SubmitReply(ctx, req.Ref, reply)
		if err != nil {
			metrics.SubmissionOutcomes.WithLabelValues("transport_error").Inc()
			res.Status = domain.StatusSubmissionError
			res.Reason = err.Error()
			res.Err = err
			return res
		}
		metrics.SubmissionOutcomes.WithLabelValues(strings.ToLower(string(out.Kind))).Inc()
		res.Outcomes = append(res.Outcomes, out)

		switch out.Kind {
		case storefront.OutcomeSuccess:
			res.Status = domain.StatusAnswered
			res.Reason = ""
			return res
		case storefront.OutcomeAPIError:
			res.Status = domain.StatusSubmissionError
			res.Reason = describe(out)
			return res
		case storefront.OutcomeForbiddenName, storefront.OutcomeForbiddenContent:
		default:
			res.Status = domain.StatusFailed
			res.Reason = describe(out)
			return res
		}

		if res.Mitigations >= s.maxMitigations {
			res.Status = domain.StatusForbiddenContent
			res.Reason = fmt.Sprintf("mitigation retries exhausted after %s", out)
			return res
		}
		res.Mitigations++

		if out.Kind == storefront.OutcomeForbiddenName {
			honorific := gen.Policy.EffectiveHonorific()
			gen.AuthorSubstitute = honorific
			author := strings.TrimSpace(gen.Review.Author)
			if author != "" && strings.Contains(reply, author) {
				slog.Info("replacing rejected customer name", "mitigation", res.Mitigations)
				reply = strings.ReplaceAll(reply, author, honorific)
				continue
			}
		} else {
			if w := strings.TrimSpace(out.Word); w != "" && !slices.Contains(gen.ExtraForbidden, w) {
				gen.ExtraForbidden = append(slices.Clone(gen.ExtraForbidden), w)
			}
			gen.NoQuote = true
		}

		slog.Info("regenerating rejected reply", "outcome", out.String(), "mitigation", res.Mitigations)
		regen := s.loop.Run(ctx, gen)
		if !regen.OK() {
			res.Status = domain.StatusForbiddenContent
			res.Reason = fmt.Sprintf("regeneration after %s exhausted: %s", out, strings.Join(regen.Reasons(), "; "))
			return res
		}
		reply = regen.Reply
	}
}

func describe(out storefront.SubmitOutcome) string {
	if out.Message == "" {
		return out.String()
	}
	return fmt.Sprintf("%s: %s", out, out.Message)
}
