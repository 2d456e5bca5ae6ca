package response

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Segment is one typed piece of generator output.
type Segment struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var thinkBlock = regexp.MustCompile(`(?is)<(think|thinking|reasoning)>.*?</(think|thinking|reasoning)>`)

var hiddenSegmentTypes = map[string]bool{
	"reasoning": true,
	"thinking":  true,
	"think":     true,
}

// NormalizeOutput returns only the learner-visible text of a generator
// response: plain text passes through, a JSON array of segments keeps its
// visible segments, and reasoning blocks are removed. The result is
// trimmed.
func NormalizeOutput(raw string) string {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "[") {
		if segments, ok := parseSegments(trimmed); ok {
			var b strings.Builder
			for _, seg := range segments {
				if hiddenSegmentTypes[strings.ToLower(seg.Type)] {
					continue
				}
				b.WriteString(seg.Text)
			}
			trimmed = b.String()
		}
	}

	trimmed = thinkBlock.ReplaceAllString(trimmed, "")
	// some models only emit the closing tag
	if idx := strings.LastIndex(strings.ToLower(trimmed), "</think>"); idx >= 0 {
		trimmed = trimmed[idx+len("</think>"):]
	}
	return strings.TrimSpace(trimmed)
}

// parseSegments accepts an array whose elements are strings or
// {type, text} objects.
func parseSegments(s string) ([]Segment, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, false
	}
	segments := make([]Segment, 0, len(items))
	for _, item := range items {
		var text string
		if err := json.Unmarshal(item, &text); err == nil {
			segments = append(segments, Segment{Type: "text", Text: text})
			continue
		}
		var seg Segment
		if err := json.Unmarshal(item, &seg); err != nil {
			return nil, false
		}
		segments = append(segments, seg)
	}
	return segments, true
}
