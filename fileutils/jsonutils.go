package fileutils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Validator is implemented by decoded model payloads that can check their
// own field ranges.
type Validator interface {
	Validate() error
}

// DecodeModelJSON strictly decodes the outermost {...} span of a model
// response into v, so prose or code fences around the object are ignored.
// Unknown fields and a second value inside the span are errors. If v
// implements Validator, its Validate result is returned.
func DecodeModelJSON(outputText string, v any) error {
	s := strings.TrimSpace(outputText)
	if s == "" {
		return io.ErrUnexpectedEOF
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end <= start {
		return fmt.Errorf("no JSON object found in model output (len=%d)", len(s))
	}
	s = s[start : end+1]

	if err := decodeStrict(s, v); err != nil {
		return fmt.Errorf("decode model JSON (len=%d): %w", len(s), err)
	}
	if val, ok := v.(Validator); ok {
		if err := val.Validate(); err != nil {
			return fmt.Errorf("validate model JSON: %w", err)
		}
	}
	return nil
}

func decodeStrict(s string, v any) error {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err == nil {
			return fmt.Errorf("trailing data after object: %s", bytes.TrimSpace(extra))
		}
		return fmt.Errorf("trailing data after object: %w", err)
	}
	return nil
}
