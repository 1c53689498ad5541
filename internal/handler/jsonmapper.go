package handler

import "encoding/json"

// JSONMapper is the default ObjectMapper, backed by encoding/json (see
// DESIGN.md for why no third-party object-mapping library is used here).
type JSONMapper struct{}

func (JSONMapper) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONMapper) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
