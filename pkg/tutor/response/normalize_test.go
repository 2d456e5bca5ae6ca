package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeOutput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "  It means hello.\n", "It means hello."},
		{"think block", "<think>user wants a translation</think>\nIt means hello.", "It means hello."},
		{"multiline think", "<THINK>\na\nb\n</THINK>It means hello.", "It means hello."},
		{"dangling close", "reasoning here</think> It means hello.", "It means hello."},
		{
			"segments",
			`[{"type":"reasoning","text":"translate"},{"type":"text","text":"It means "},{"type":"text","text":"hello."}]`,
			"It means hello.",
		},
		{"string segments", `["It means ", "hello."]`, "It means hello."},
		{"array that is not segments", `[1, 2, 3]`, "[1, 2, 3]"},
		{"bracketed prose", "[note] It means hello.", "[note] It means hello."},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeOutput(tt.raw))
		})
	}
}
