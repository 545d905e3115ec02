package models

import (
	"bytes"
	"encoding/json"
)

// UnmarshalJSON accepts the loosely typed rows browsers send: numbers or
// booleans for the text fields and any JSON value for checks.
func (r *AttendanceRow) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        json.RawMessage `json:"id"`
		Name      json.RawMessage `json:"name"`
		ClassName json.RawMessage `json:"className"`
		Checks    json.RawMessage `json:"checks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.ID = looseText(raw.ID)
	r.Name = looseText(raw.Name)
	r.ClassName = looseText(raw.ClassName)
	r.Checks, r.MalformedChecks = looseChecks(raw.Checks)
	return nil
}

// UnmarshalJSON lets trainer and year arrive as numbers
func (r *SessionRequest) UnmarshalJSON(data []byte) error {
	type plain SessionRequest
	aux := struct {
		*plain
		Trainer json.RawMessage `json:"trainer"`
		Year    json.RawMessage `json:"year"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.Trainer = looseText(aux.Trainer)
	r.Year = looseText(aux.Year)
	return nil
}

// looseText returns strings unquoted, null as "" and any other value as its JSON text
func looseText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// looseChecks maps each element to whether it counts as checked.
// true, non-zero numbers, non-empty strings, objects and arrays are checked.
// A value that is not an array decodes to no checks.
// malformed reports anything other than an array of booleans or a missing value.
func looseChecks(raw json.RawMessage) (checks []bool, malformed bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}

	var items []interface{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return []bool{}, true
	}

	checks = make([]bool, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case bool:
			checks[i] = v
		case float64:
			checks[i] = v != 0
			malformed = true
		case string:
			checks[i] = v != ""
			malformed = true
		case nil:
			malformed = true
		default:
			checks[i] = true
			malformed = true
		}
	}
	return checks, malformed
}
