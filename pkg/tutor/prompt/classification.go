package prompt

import "strings"

// BuildClassificationPrompt asks for {"category", "summary"} describing
// the exchange.
func BuildClassificationPrompt(userInput, response string) string {
	var prompt strings.Builder

	prompt.WriteString("<task>\n")
	prompt.WriteString("The response below comes from a language tutor, written for the learner message that precedes it.\n")
	prompt.WriteString("Decide whether the exchange shows the learner's confusion or mistakes (\"troubled\"),\n")
	prompt.WriteString("their confidence and understanding (\"known\"), or neither (\"misc\", e.g. small talk).\n")
	prompt.WriteString("Summarize the main concept or learning point in one sentence.\n")
	prompt.WriteString("</task>\n\n")

	prompt.WriteString("<user_input>\n")
	prompt.WriteString(Neutralize(userInput))
	prompt.WriteString("\n</user_input>\n\n")

	prompt.WriteString("<response>\n")
	prompt.WriteString(Neutralize(response))
	prompt.WriteString("\n</response>\n\n")

	prompt.WriteString("Respond in JSON only:\n")
	prompt.WriteString(`{"category": "troubled" | "known" | "misc", "summary": "one-sentence summary"}`)
	return prompt.String()
}
