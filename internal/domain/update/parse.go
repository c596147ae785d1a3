package update

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/okian/lounge/internal/domain/model"
)

// ParseBatch splits an update body into its raw items without validating
// them. Falsy documents report ErrEmptyBatch; anything else that is not a
// non-empty array reports ErrInvalidFormat.
func ParseBatch(body []byte) ([]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after document", ErrInvalidFormat)
	}

	if falsy(doc) {
		return nil, ErrEmptyBatch
	}
	if _, ok := doc.([]any); !ok {
		return nil, fmt.Errorf("%w: body is not an array", ErrInvalidFormat)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	return items, nil
}

// falsy mirrors the truthiness test existing clients rely on: null, false,
// zero, the empty string and empty containers all count as "no data".
func falsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// ParseItem is the decode boundary for one batch entry: a two-element array
// of a string name and a JSON integer literal. Booleans, floats (even 1500.0)
// and numbers outside int64 are rejected.
func ParseItem(raw json.RawMessage) (model.UpdateItem, error) {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil {
		return model.UpdateItem{}, fmt.Errorf("%w: item is not an array", ErrInvalidFormat)
	}
	if len(pair) != 2 {
		return model.UpdateItem{}, fmt.Errorf("%w: item has %d elements, want 2", ErrInvalidFormat, len(pair))
	}

	nameRaw := bytes.TrimSpace(pair[0])
	if len(nameRaw) == 0 || nameRaw[0] != '"' {
		return model.UpdateItem{}, fmt.Errorf("%w: name is not a string", ErrInvalidFormat)
	}
	var name string
	if err := json.Unmarshal(nameRaw, &name); err != nil {
		return model.UpdateItem{}, fmt.Errorf("%w: name: %w", ErrInvalidFormat, err)
	}

	mmr, err := parseIntLiteral(bytes.TrimSpace(pair[1]))
	if err != nil {
		return model.UpdateItem{}, fmt.Errorf("%w: mmr: %w", ErrInvalidFormat, err)
	}
	return model.UpdateItem{Name: name, MMR: mmr}, nil
}

func parseIntLiteral(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, fmt.Errorf("empty value")
	}
	if c := b[0]; c != '-' && (c < '0' || c > '9') {
		return 0, fmt.Errorf("not an integer: %s", b)
	}
	if bytes.ContainsAny(b, ".eE") {
		return 0, fmt.Errorf("not an integer: %s", b)
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("out of range: %s", b)
	}
	return n, nil
}
