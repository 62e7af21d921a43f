// Package filter post-processes automation tool payloads before callers parse them.
package filter

// ResponseFilter rewrites the raw JSON payload returned by a tool.
type ResponseFilter interface {
	Filter(toolName string, payload []byte) []byte
}

// Func adapts a plain function to ResponseFilter.
type Func func(toolName string, payload []byte) []byte

func (f Func) Filter(toolName string, payload []byte) []byte {
	return f(toolName, payload)
}
