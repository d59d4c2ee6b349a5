package pipeline

import (
	"fmt"
	"strings"

	"github.com/nexobotics/nova/internal/session"
)

// ragPreamble frames the task for retrieval-augmented answers. The
// fallback behavior for missing information lives in the instructions, so
// an empty passage list still yields a graceful answer instead of a
// hallucinated one.
const ragPreamble = `You are NOVA, a helpful customer service assistant for Nexobotics. Answer the user's question based on the information provided in the passages below.

If the information needed isn't in the passages, politely explain that you don't have that specific detail and suggest how the user could get help (e.g., 'For more details, please contact our support team').

Your responses should be:
- Friendly and conversational
- Clear and concise
- Helpful and solution-oriented
- Professional but approachable`

// personaSystem is the assistant persona for direct (non-retrieval) chat.
const personaSystem = `You are NOVA, a proactive and adaptable customer service agent for Nexobotics. Your role is to guide users, particularly business owners, on how Nexobotics can transform their customer service by handling all customer interactions efficiently and attentively while maximizing customer satisfaction. You also act as a consultant, offering actionable insights to enhance customer satisfaction and loyalty.

Adapt your communication style to match the user's tone, casual if they're laid-back or professional if they're formal, but stay formal in the beginning of the conversation. Always ensure clarity and relevance in your responses while minimizing unnecessary explanations unless requested. Keep greetings short and dynamic. Stay concise, focused, and results-oriented, delivering valuable insights quickly without overwhelming the user. You can use bold or italic formatting, or lists, when that makes the answer easier to read. Maintain a friendly and approachable tone while ensuring your responses are practical and impactful.

When '/start' is prompted, the user has just arrived: greet them uniquely in one very short sentence. Avoid long introductions and explanations.`

// oneline collapses newlines so labeled prompt sections stay one per line.
func oneline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// renderHistory formats prior turns for inclusion in a prompt, oldest first.
func renderHistory(turns []session.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("CONVERSATION SO FAR:\n")
	for _, turn := range turns {
		b.WriteString(string(turn.Role))
		b.WriteString(": ")
		b.WriteString(oneline(turn.Text))
		b.WriteByte('\n')
	}
	return b.String()
}

// assemblePrompt joins the fixed sections into the final prompt text.
func assemblePrompt(query string, turns []session.Turn, passages []string) string {
	var b strings.Builder
	b.WriteString(ragPreamble)
	b.WriteString("\n\n")

	if h := renderHistory(turns); h != "" {
		b.WriteString(h)
		b.WriteByte('\n')
	}

	b.WriteString("QUESTION: ")
	b.WriteString(oneline(query))
	b.WriteByte('\n')

	for i, passage := range passages {
		fmt.Fprintf(&b, "PASSAGE %d: %s\n", i+1, oneline(passage))
	}

	return b.String()
}

// buildPrompt assembles the generation prompt within maxBytes. When the
// full prompt does not fit, oldest history turns are dropped first; if that
// is not enough, the lowest-ranked passages go next. The preamble, query,
// and top passage are never dropped, so a pathological budget degrades to
// the minimal useful prompt rather than an empty one.
func buildPrompt(query string, turns []session.Turn, passages []string, maxBytes int) string {
	prompt := assemblePrompt(query, turns, passages)
	if maxBytes <= 0 || len(prompt) <= maxBytes {
		return prompt
	}

	// Oldest history first.
	for len(turns) > 0 && len(prompt) > maxBytes {
		turns = turns[1:]
		prompt = assemblePrompt(query, turns, passages)
	}

	// Then lowest-ranked passages, keeping at least the top one.
	for len(passages) > 1 && len(prompt) > maxBytes {
		passages = passages[:len(passages)-1]
		prompt = assemblePrompt(query, turns, passages)
	}

	return prompt
}
