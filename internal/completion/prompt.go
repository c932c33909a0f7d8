package completion

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/toneill57/innpilot-sub001/internal/llm"
	"github.com/toneill57/innpilot-sub001/internal/model"
)

var personas = map[model.ActorKind]string{
	model.ActorGuest: "You are the digital concierge of a hospitality property, speaking with a registered guest. " +
		"Be warm, concise and practical.",
	model.ActorStaff: "You are the internal operations assistant of a hospitality property, speaking with a staff member. " +
		"Be precise and cite internal procedures when relevant.",
	model.ActorAnonymous: "You are the website assistant of a hospitality property, speaking with a prospective visitor. " +
		"Be friendly and help them understand the accommodations and how to book.",
}

const groundingRule = "Answer only from the knowledge below. Refer to it as our records. " +
	"If the knowledge does not cover the question, say so rather than guessing."

const ungroundedRule = "No knowledge was found for this question. Answer briefly from general hospitality " +
	"knowledge, make clear you could not confirm it in the property's records, and do not invent specifics " +
	"such as prices, times or availability."

const recallRule = "Earlier exchanges of this conversation follow. Refer to them as something the user " +
	"mentioned earlier, never as our records."

// Prompt is an assembled completion request before model settings apply.
type Prompt struct {
	System   string
	Messages []llm.ChatMessage
}

// BuildPrompt assembles the system prompt and the message list for a turn.
// History is trimmed to the token budget left after the system prompt and
// the current message.
func BuildPrompt(in Input, tokenLimit, recentTurns int) Prompt {
	system := buildSystem(in)

	budget := tokenLimit - EstimateTokens(system) - EstimateTokens(in.Message)
	if budget < 0 {
		budget = 0
	}
	history := TruncateHistory(in.History, budget, recentTurns)

	msgs := make([]llm.ChatMessage, 0, len(history)+1)
	for _, t := range history {
		if t.Role != model.RoleUser && t.Role != model.RoleAssistant {
			continue
		}
		msgs = append(msgs, llm.ChatMessage{Role: string(t.Role), Content: t.Content})
	}
	msgs = append(msgs, llm.ChatMessage{Role: string(model.RoleUser), Content: in.Message})
	return Prompt{System: system, Messages: msgs}
}

func buildSystem(in Input) string {
	var b strings.Builder

	persona, ok := personas[in.Actor.Kind]
	if !ok {
		persona = personas[model.ActorAnonymous]
	}
	b.WriteString(persona)
	b.WriteString("\n\n")

	if len(in.Documents) > 0 {
		b.WriteString(groundingRule)
		b.WriteString("\n\n## Knowledge\n")
		for i, d := range in.Documents {
			fmt.Fprintf(&b, "[%d] (%s) %s\n%s\n\n", i+1, d.Collection, d.Title, strings.TrimSpace(d.Content))
		}
	} else {
		b.WriteString(ungroundedRule)
		b.WriteString("\n\n")
	}

	if len(in.Recalls) > 0 {
		b.WriteString("## Earlier in this conversation\n")
		b.WriteString(recallRule)
		b.WriteString("\n")
		for _, r := range in.Recalls {
			b.WriteString("- ")
			b.WriteString(strings.ReplaceAll(strings.TrimSpace(r.Content), "\n", " / "))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if summary := IntentSummary(in.Intent); summary != "" {
		b.WriteString("## Booking details so far\n")
		b.WriteString(summary)
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// IntentSummary renders the set slots of an intent, one per line.
func IntentSummary(i model.Intent) string {
	var lines []string
	if i.StartDate != nil {
		lines = append(lines, "- Arrival: "+*i.StartDate)
	}
	if i.EndDate != nil {
		lines = append(lines, "- Departure: "+*i.EndDate)
	}
	if i.PartySize != nil {
		lines = append(lines, "- Guests: "+strconv.Itoa(*i.PartySize))
	}
	if i.Category != nil {
		lines = append(lines, "- Accommodation type: "+*i.Category)
	}
	if len(lines) == 0 {
		return ""
	}
	if !i.Complete {
		lines = append(lines, "- Still missing details needed to check availability; ask for them.")
	}
	return strings.Join(lines, "\n")
}
