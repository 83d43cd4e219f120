package apisvc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iancoleman/orderedmap"
	"github.com/pkg/errors"

	"github.com/trezcool/cems/core"
)

const invalidResponse = "Invalid response from server"

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "json")
}

// toAPIError turns a non-2xx response into an *core.APIError.
func toAPIError(res response) error {
	details := parsePayload(res)
	return &core.APIError{
		Message: core.DeriveMessage(details, fmt.Sprintf("Request failed with status %d", res.status)),
		Status:  res.status,
		Details: details,
	}
}

// parsePayload decodes JSON bodies in key order and keeps any other body as text.
// An undecodable JSON body yields nil.
func parsePayload(res response) interface{} {
	if isJSON(res.contentType) {
		v, err := decodeOrdered(res.body)
		if err != nil {
			return nil
		}
		return v
	}
	text := strings.TrimSpace(string(res.body))
	if text == "" {
		return nil
	}
	return text
}

func decodeSuccess(res response, out interface{}) error {
	if out == nil || len(bytes.TrimSpace(res.body)) == 0 {
		return nil
	}
	if s, ok := out.(*string); ok {
		*s = string(res.body)
		return nil
	}
	if !isJSON(res.contentType) {
		return &core.APIError{Message: invalidResponse, Status: res.status, Details: string(res.body)}
	}
	if err := json.Unmarshal(res.body, out); err != nil {
		return &core.APIError{Message: invalidResponse, Status: res.status, Details: err}
	}
	return nil
}

// decodeOrdered decodes a JSON document keeping the key order of objects (as core.Object).
func decodeOrdered(data []byte) (interface{}, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		var v interface{}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, errors.Wrap(err, "json.Unmarshal()")
		}
		return toOrdered(v), nil
	}
	obj := orderedmap.New()
	if err := obj.UnmarshalJSON(data); err != nil {
		return nil, errors.Wrap(err, "orderedmap.UnmarshalJSON()")
	}
	return toOrdered(obj), nil
}

// toOrdered turns ordered maps, at any depth, into core.Object.
func toOrdered(v interface{}) interface{} {
	switch val := v.(type) {
	case *orderedmap.OrderedMap:
		return objectOf(val)
	case orderedmap.OrderedMap:
		return objectOf(&val)
	case []interface{}:
		list := make([]interface{}, len(val))
		for i, item := range val {
			list[i] = toOrdered(item)
		}
		return list
	}
	return v
}

func objectOf(m *orderedmap.OrderedMap) core.Object {
	obj := make(core.Object, 0, len(m.Keys()))
	for _, key := range m.Keys() {
		val, _ := m.Get(key)
		obj = append(obj, core.Member{Key: key, Value: toOrdered(val)})
	}
	return obj
}
