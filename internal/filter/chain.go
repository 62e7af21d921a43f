package filter

// FilterChain applies filters in order, each seeing the previous output.
type FilterChain struct {
	filters []ResponseFilter
}

// NewFilterChain creates a chain; nil filters are skipped.
func NewFilterChain(filters ...ResponseFilter) *FilterChain {
	c := &FilterChain{}
	for _, f := range filters {
		c.Add(f)
	}
	return c
}

func (c *FilterChain) Filter(toolName string, payload []byte) []byte {
	for _, f := range c.filters {
		payload = f.Filter(toolName, payload)
	}
	return payload
}

// Add appends f to the chain.
func (c *FilterChain) Add(f ResponseFilter) {
	if f != nil {
		c.filters = append(c.filters, f)
	}
}

// Len returns the number of filters in the chain.
func (c *FilterChain) Len() int {
	return len(c.filters)
}
