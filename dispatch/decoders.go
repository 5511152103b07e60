package dispatch

import (
	"fmt"
	"reflect"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONObject is an untyped JSON object result.
type JSONObject map[string]any

// JSONArray is an untyped JSON array result.
type JSONArray []any

func decodeString(body string) (any, error) {
	return body, nil
}

func decodeJSONObject(body string) (any, error) {
	var obj JSONObject
	if err := json.UnmarshalFromString(body, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("expected a JSON object, got %q", truncate(body))
	}
	return obj, nil
}

func decodeJSONArray(body string) (any, error) {
	var arr JSONArray
	if err := json.UnmarshalFromString(body, &arr); err != nil {
		return nil, err
	}
	if arr == nil {
		return nil, fmt.Errorf("expected a JSON array, got %q", truncate(body))
	}
	return arr, nil
}

// decodeStructural decodes JSON into a new value of type t.
func decodeStructural(body string, t reflect.Type) (any, error) {
	ptr := reflect.New(t)
	if err := json.UnmarshalFromString(body, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

func truncate(s string) string {
	const max = 64
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
