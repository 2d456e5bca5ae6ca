package structured

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type verdict struct {
	Category string `json:"category"`
	Summary  string `json:"summary"`
}

func defaultVerdict() verdict {
	return verdict{Category: "known", Summary: "default"}
}

func requireCategory(v *verdict) error {
	if v.Category == "" {
		return errors.New("category missing")
	}
	return nil
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind Kind
		want     verdict
	}{
		{"plain object", `{"category":"troubled","summary":"tones"}`, Ok, verdict{"troubled", "tones"}},
		{"fenced", "```json\n{\"category\":\"known\",\"summary\":\"greeting\"}\n```", Ok, verdict{"known", "greeting"}},
		{"not json", "I think this is known.", Fallback, defaultVerdict()},
		{"broken json", `{"category": "known",`, Fallback, defaultVerdict()},
		{"fails validation", `{"summary":"no category"}`, Fallback, defaultVerdict()},
		{"wrong type", `{"category": 3}`, Fallback, defaultVerdict()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.raw, requireCategory, defaultVerdict)
			assert.Equal(t, tt.wantKind, res.Kind)
			assert.Equal(t, tt.want, res.Value)
			if tt.wantKind == Fallback {
				assert.Error(t, res.Err)
				assert.True(t, res.IsFallback())
			} else {
				assert.NoError(t, res.Err)
			}
		})
	}
}

func TestParseNilValidator(t *testing.T) {
	res := Parse(`{"summary":"x"}`, nil, defaultVerdict)
	assert.Equal(t, Ok, res.Kind)
	assert.Equal(t, "x", res.Value.Summary)
}

func TestRequireKeys(t *testing.T) {
	assert.NoError(t, RequireKeys(`{"a":1,"b":""}`, "a", "b"))

	err := RequireKeys(`{"a":1}`, "a", "b", "c")
	assert.EqualError(t, err, "missing keys: b, c")

	assert.Error(t, RequireKeys("nope", "a"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "ok", Ok.String())
	assert.Equal(t, "fallback", Fallback.String())
}
