// Package storefront filters storefront automation tool output before it is
// parsed: page dumps are dropped and long strings truncated.
package storefront

import (
	"encoding/json"
	"log/slog"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const truncatedSuffix = "... [TRUNCATED]"

// listKeys are the wrappers automation servers use for review arrays.
var listKeys = []string{"reviews", "items", "data"}

// ResponseFilter prunes storefront MCP tool responses
type ResponseFilter struct {
	MaxStringLen int
	DropFields   []string
}

// NewResponseFilter creates a new storefront ResponseFilter
func NewResponseFilter(maxStringLen int, dropFields []string) *ResponseFilter {
	return &ResponseFilter{MaxStringLen: maxStringLen, DropFields: dropFields}
}

// Filter drops configured fields at the top level and inside every review
// element, then truncates long strings. Invalid JSON passes through.
func (f *ResponseFilter) Filter(toolName string, payload []byte) []byte {
	if !gjson.ValidBytes(payload) {
		return payload
	}
	result := string(payload)

	prune := func(prefix string) {
		for _, key := range f.DropFields {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			if gjson.Get(result, path).Exists() {
				result, _ = sjson.Delete(result, path)
			}
		}
	}

	root := gjson.Parse(result)
	if root.IsArray() {
		root.ForEach(func(idx, _ gjson.Result) bool {
			prune(idx.String())
			return true
		})
	} else {
		prune("")
		for _, listKey := range listKeys {
			gjson.Get(result, listKey).ForEach(func(idx, _ gjson.Result) bool {
				prune(listKey + "." + idx.String())
				return true
			})
		}
	}

	if f.MaxStringLen <= 0 {
		return []byte(result)
	}
	return f.filterLongStrings(toolName, []byte(result))
}

func (f *ResponseFilter) filterLongStrings(toolName string, data []byte) []byte {
	var m any
	if err := json.Unmarshal(data, &m); err != nil {
		return data
	}

	if !f.truncateRecursive(&m) {
		return data
	}
	slog.Debug("truncated long response strings", "tool", toolName, "limit", f.MaxStringLen)

	newData, err := json.Marshal(m)
	if err != nil {
		return data
	}
	return newData
}

// truncateRecursive cuts strings longer than MaxStringLen runes and reports
// whether anything changed.
func (f *ResponseFilter) truncateRecursive(val *any) bool {
	if val == nil || *val == nil {
		return false
	}

	changed := false
	switch v := (*val).(type) {
	case string:
		if utf8.RuneCountInString(v) > f.MaxStringLen {
			*val = string([]rune(v)[:f.MaxStringLen]) + truncatedSuffix
			changed = true
		}
	case map[string]any:
		for k, child := range v {
			if f.truncateRecursive(&child) {
				v[k] = child
				changed = true
			}
		}
	case []any:
		for i, child := range v {
			if f.truncateRecursive(&child) {
				v[i] = child
				changed = true
			}
		}
	}
	return changed
}
