package sqlite

import "encoding/json"

func marshalStrings(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func unmarshalStrings(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func marshalMap(v map[string]interface{}) string {
	if v == nil {
		v = map[string]interface{}{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func unmarshalMap(s string) map[string]interface{} {
	if s == "" {
		return nil
	}
	var out map[string]interface{}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
