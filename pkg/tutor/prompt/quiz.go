package prompt

import (
	"fmt"
	"strings"
)

// BuildQuizQuestionPrompt asks for one short question practicing the given
// topics, grounded in the references when there are any.
func BuildQuizQuestionPrompt(topics []string, references []string, asked int, total int) string {
	var prompt strings.Builder

	prompt.WriteString("<task>\n")
	prompt.WriteString("You are a Vietnamese language tutor running a short review quiz.\n")
	prompt.WriteString(fmt.Sprintf("This is question %d of %d.\n", asked+1, total))
	prompt.WriteString("Write exactly one short question that practices the learner's weak topics.\n")
	prompt.WriteString("Output only the question text.\n")
	prompt.WriteString("</task>\n\n")

	prompt.WriteString("<long_term_memory>\n")
	if len(topics) == 0 {
		prompt.WriteString("(none, ask about basic greetings)\n")
	}
	for _, t := range topics {
		prompt.WriteString("[troubled] ")
		prompt.WriteString(Neutralize(t))
		prompt.WriteString("\n")
	}
	prompt.WriteString("</long_term_memory>\n\n")

	prompt.WriteString("<reference_documents>\n")
	prompt.WriteString(RenderReferences(references))
	prompt.WriteString("</reference_documents>\n")
	return prompt.String()
}

// BuildGradingPrompt asks for {"correct", "feedback"} on one answer.
func BuildGradingPrompt(question, answer string) string {
	var prompt strings.Builder

	prompt.WriteString("<task>\n")
	prompt.WriteString("Grade the learner's answer to a Vietnamese quiz question.\n")
	prompt.WriteString("Be lenient with missing diacritics but not with wrong words.\n")
	prompt.WriteString("</task>\n\n")

	prompt.WriteString("<question>\n")
	prompt.WriteString(Neutralize(question))
	prompt.WriteString("\n</question>\n\n")

	prompt.WriteString("<answer>\n")
	prompt.WriteString(Neutralize(answer))
	prompt.WriteString("\n</answer>\n\n")

	prompt.WriteString("Respond in JSON only:\n")
	prompt.WriteString(`{"correct": true | false, "feedback": "one or two encouraging sentences"}`)
	return prompt.String()
}
