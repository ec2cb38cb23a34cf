package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/care-assistant/internal/domain"
	"github.com/ashureev/care-assistant/internal/tools"
)

const (
	greetingText = "Hello! I'm your ❤️ CARE Assistant. What's your name?"
	repromptText = "I didn't quite catch your name. Could you please tell me your first name?"
	fallbackText = "I'm sorry, I encountered an error generating a response. Could you please rephrase your question?"
)

func welcomeText(profile *domain.UserProfile) string {
	first := profile.FirstName()
	if since, ok := memberSince(profile.MemberSince); ok {
		return fmt.Sprintf("Welcome %s! ❤️ Thank you for being a member since %s. "+
			"Do you have any questions about your plan, benefits, or claims?", first, since)
	}
	return fmt.Sprintf("Welcome %s! ❤️ I found your account. "+
		"Do you have any questions about your plan, benefits, or claims?", first)
}

func notFoundText(name string) string {
	return fmt.Sprintf("Sorry %s, you are not in our system. Please contact support for assistance.", name)
}

// memberSince renders an ISO date as "January 2006".
func memberSince(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("January 2006"), true
		}
	}
	return "", false
}

func extractionPrompt(text string) string {
	return `Extract the person's name from the message below.

Examples:
- "I'm John" -> name: "John", confidence: "high"
- "My name is Sarah Smith" -> name: "Sarah Smith", confidence: "high"
- "Call me Mike" -> name: "Mike", confidence: "high"
- "Emily" -> name: "Emily", confidence: "high"
- "I'm Marcelo, your patient" -> name: "Marcelo", confidence: "high"
- "what plans do you offer?" -> name: "", confidence: "low"

If no name is clearly present, return an empty name with confidence "low".

Message: "` + text + `"`
}

func selectionPrompt(specs []tools.Spec, question string) string {
	var b strings.Builder
	b.WriteString("You are deciding which insurance lookup tools are needed to answer a member's question.\n\nAvailable tools:\n")
	for _, s := range specs {
		fmt.Fprintf(&b, "- %s: %s\n", s.Name, s.Description)
	}
	b.WriteString(`
Examples:
Question: "What's my deductible?"
coverage_lookup

Question: "Is physical therapy covered?"
benefit_verify

Question: "Do I have any pending claims?"
claims_status

Question: "What's my deductible and is surgery covered?"
coverage_lookup
benefit_verify

Question: "Tell me about my plan, my benefits and my recent claims"
coverage_lookup
benefit_verify
claims_status

Question: "Thanks, that's all!"
(no tools)

List only the tool names needed, one per line. Do not explain.

Question: "`)
	b.WriteString(question)
	b.WriteString("\"\n")
	return b.String()
}

func systemPrompt(profile *domain.UserProfile, results map[string]domain.ToolResult, order []string) string {
	var b strings.Builder
	b.WriteString("You are the CARE Assistant, a friendly health insurance helper.\n\n")
	if profile != nil {
		fmt.Fprintf(&b, `Member profile:
- Name: %s
- Age: %d
- Plan ID: %s
- Member Since: %s
- Annual Deductible: $%s
- Deductible Met: $%s
- Out-of-Pocket Max: $%s
- Out-of-Pocket Spent: $%s
- Dependents: %d
`,
			profile.Name, profile.Age, profile.PlanID, profile.MemberSince,
			profile.DeductibleAnnual.StringFixed(2), profile.DeductibleMet.StringFixed(2),
			profile.OutOfPocketMax.StringFixed(2), profile.OutOfPocketSpent.StringFixed(2),
			profile.Dependents)
	}
	b.WriteString(`
Instructions:
- Answer using only the member profile above and the tool results below.
- Never invent plan details, amounts, dates or claims that are not in this data.
- This member is the owner of this data, so you may share any of it with them.
- If the data does not answer the question, say so and suggest contacting support.
- Keep answers concise and friendly.
`)

	if len(results) > 0 {
		b.WriteString("\nTool results:\n")
		for _, name := range order {
			res, ok := results[name]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "\n--- %s ---\n%s\n", strings.ToUpper(name), renderResult(res))
		}
	}
	return b.String()
}

func renderResult(res domain.ToolResult) string {
	raw, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Sprintf("status: %s, message: %s", res.ToolStatus(), res.ToolMessage())
	}
	return string(raw)
}
