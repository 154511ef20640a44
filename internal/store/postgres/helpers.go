package postgres

import (
	"database/sql"
	"encoding/json"
)

func marshalStrings(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	b, _ := json.Marshal(ss)
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

func marshalMap(m map[string]interface{}) string {
	if m == nil {
		m = map[string]interface{}{}
	}
	b, _ := json.Marshal(m)
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

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
