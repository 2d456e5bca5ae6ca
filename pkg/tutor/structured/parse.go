// Package structured parses JSON returned by a language model into a typed
// value, substituting a default when the output is unusable.
package structured

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind tags how a Result was produced.
type Kind int

const (
	Ok Kind = iota
	Fallback
)

func (k Kind) String() string {
	if k == Ok {
		return "ok"
	}
	return "fallback"
}

// Result always carries a usable Value. Err explains a Fallback.
type Result[T any] struct {
	Kind  Kind
	Value T
	Err   error
}

func (r Result[T]) IsFallback() bool {
	return r.Kind == Fallback
}

var ErrNoJSON = errors.New("no JSON object in output")

// Parse extracts the outermost JSON object from raw, decodes it into T and
// runs validate. Any failure yields Fallback with the value from fallback.
// validate may be nil.
func Parse[T any](raw string, validate func(*T) error, fallback func() T) Result[T] {
	body := ExtractJSON(raw)
	if body == "" {
		return Result[T]{Kind: Fallback, Value: fallback(), Err: ErrNoJSON}
	}

	var v T
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return Result[T]{Kind: Fallback, Value: fallback(), Err: fmt.Errorf("decode: %w", err)}
	}
	if validate != nil {
		if err := validate(&v); err != nil {
			return Result[T]{Kind: Fallback, Value: fallback(), Err: err}
		}
	}
	return Result[T]{Kind: Ok, Value: v}
}

// ExtractJSON returns the span from the first '{' to the last '}', which
// drops markdown fences and chatter around the object.
func ExtractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

// RequireKeys reports which of keys are absent from the JSON object in raw.
// Useful in validators where a zero value is indistinguishable from a
// missing key.
func RequireKeys(raw string, keys ...string) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &m); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	var missing []string
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing keys: %s", strings.Join(missing, ", "))
	}
	return nil
}
