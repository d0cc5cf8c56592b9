package features

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidDocument is wrapped by every ParseDocument failure.
var ErrInvalidDocument = errors.New("invalid scoring document")

// Document is a decoded scoring request body: a JSON object whose
// "features" member is itself an object.
type Document struct {
	Features map[string]any
	Fields   map[string]json.RawMessage
}

// ParseDocument decodes a scoring request body. Feature numbers are kept as
// json.Number so Assemble sees them unrounded.
func ParseDocument(body []byte) (Document, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Document{}, fmt.Errorf("%w: empty body", ErrInvalidDocument)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	raw, ok := fields["features"]
	if !ok {
		return Document{}, fmt.Errorf("%w: features key missing", ErrInvalidDocument)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Document{}, fmt.Errorf("%w: features is not an object", ErrInvalidDocument)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return Document{Features: values, Fields: fields}, nil
}
