// Package serializer converts mangos between their wire mapping and the
// stored record, validating client input on the way in.
package serializer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mangos/mangos/internal/model"
)

// Wire field names.
const (
	FieldName  = "name"
	FieldRipe  = "ripe"
	FieldColor = "color"
	FieldOwner = "owner"
)

var (
	trueValues = map[string]bool{
		"t": true, "T": true, "y": true, "Y": true,
		"yes": true, "Yes": true, "YES": true,
		"true": true, "True": true, "TRUE": true,
		"on": true, "On": true, "ON": true,
		"1": true,
	}
	falseValues = map[string]bool{
		"f": true, "F": true, "n": true, "N": true,
		"no": true, "No": true, "NO": true,
		"false": true, "False": true, "FALSE": true,
		"off": true, "Off": true, "OFF": true,
		"0": true,
	}
)

// MangoResponse is the wire representation of a mango.
type MangoResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Ripe  bool   `json:"ripe"`
	Color string `json:"color"`
	Owner string `json:"owner"`
}

// Serialize converts a mango to its wire form.
func Serialize(m *model.Mango) MangoResponse {
	return MangoResponse{
		ID:    m.ID,
		Name:  m.Name,
		Ripe:  m.Ripe,
		Color: m.Color,
		Owner: m.OwnerID,
	}
}

// SerializeMany converts a slice of mangos. The result is never nil.
func SerializeMany(mangos []*model.Mango) []MangoResponse {
	out := make([]MangoResponse, 0, len(mangos))
	for _, m := range mangos {
		out = append(out, Serialize(m))
	}
	return out
}

// Deserialize parses and validates a client payload.
//
// With partial set, absent fields are allowed and left nil in the result;
// otherwise every writable field is required. The owner and id keys are
// read-only and silently dropped. On failure the returned error is a
// *ValidationError listing every offending field.
func Deserialize(raw json.RawMessage, partial bool) (model.MangoFields, error) {
	var fields model.MangoFields
	verr := NewValidationError()

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		verr.Add(NonFieldErrors, MsgNoData)
		return fields, verr
	}

	var data map[string]json.RawMessage
	if trimmed[0] != '{' || json.Unmarshal(trimmed, &data) != nil {
		verr.Add(NonFieldErrors, fmt.Sprintf("Invalid data. Expected a dictionary, but got %s.", jsonTypeName(trimmed)))
		return fields, verr
	}

	fields.Name = charField(data, FieldName, model.MaxMangoNameLength, partial, verr)
	fields.Ripe = booleanField(data, FieldRipe, partial, verr)
	fields.Color = charField(data, FieldColor, model.MaxMangoColorLength, partial, verr)

	if verr.HasErrors() {
		return model.MangoFields{}, verr
	}
	return fields, nil
}

func charField(data map[string]json.RawMessage, name string, maxLen int, partial bool, verr *ValidationError) *string {
	raw, ok := data[name]
	if !ok {
		if !partial {
			verr.Add(name, MsgRequired)
		}
		return nil
	}

	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		verr.Add(name, MsgNull)
		return nil
	}

	var value string
	switch {
	case len(raw) > 0 && raw[0] == '"':
		if err := json.Unmarshal(raw, &value); err != nil {
			verr.Add(name, MsgInvalidStr)
			return nil
		}
	case isJSONNumber(raw):
		// Numbers are coerced to their literal text.
		value = string(raw)
	default:
		verr.Add(name, MsgInvalidStr)
		return nil
	}

	value = strings.TrimSpace(value)
	if value == "" {
		verr.Add(name, MsgBlank)
		return nil
	}
	if utf8.RuneCountInString(value) > maxLen {
		verr.Add(name, fmt.Sprintf(msgMaxLengthFmt, maxLen))
		return nil
	}

	return &value
}

func booleanField(data map[string]json.RawMessage, name string, partial bool, verr *ValidationError) *bool {
	raw, ok := data[name]
	if !ok {
		if !partial {
			verr.Add(name, MsgRequired)
		}
		return nil
	}

	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		verr.Add(name, MsgNull)
		return nil
	}

	value, ok := parseBoolean(raw)
	if !ok {
		verr.Add(name, MsgInvalidBool)
		return nil
	}
	return &value
}

// parseBoolean accepts JSON booleans, the numbers 1 and 0, and common
// textual spellings such as "yes", "off" or "True".
func parseBoolean(raw json.RawMessage) (bool, bool) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}

	if isJSONNumber(raw) {
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return false, false
		}
		switch f {
		case 1:
			return true, true
		case 0:
			return false, true
		}
		return false, false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, false
	}
	if trueValues[s] {
		return true, true
	}
	if falseValues[s] {
		return false, true
	}
	return false, false
}

func isJSONNumber(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	c := raw[0]
	if c != '-' && (c < '0' || c > '9') {
		return false
	}
	var n json.Number
	return json.Unmarshal(raw, &n) == nil
}

// jsonTypeName names the JSON value kind the way error messages report it.
func jsonTypeName(raw []byte) string {
	switch raw[0] {
	case '[':
		return "list"
	case '"':
		return "str"
	case 't', 'f':
		return "bool"
	default:
		if bytes.ContainsAny(raw, ".eE") {
			return "float"
		}
		return "int"
	}
}
