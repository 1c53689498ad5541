package handler

// newResult calls factory if non-nil, otherwise falls back to a generic
// map, giving both handler variants the same default-result behavior.
func newResult(factory func() interface{}) interface{} {
	if factory != nil {
		return factory()
	}
	return &map[string]interface{}{}
}
