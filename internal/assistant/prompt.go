package assistant

import (
	"fmt"
	"strings"
)

// Interaction is one human or assistant turn in the prompt trail.
type Interaction struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	roleHuman     = "human"
	roleAssistant = "assistant"
)

const promptHead = `You are a friendly, ultra helpful, attentive, concise AI assistant named '%s'.
<instructions>
    <rule>You work with your human companion '%s' to build, collaborate, and connect.</rule>
    <rule>We both like short, concise, conversational interactions.</rule>
    <rule>You're responding to '%s's latest-input.</rule>
    <rule>Respond in a short, conversational matter. Exclude meta-data, markdown, dashes, asterisks, etc.</rule>
    <rule>When building your response, consider our previous-interactions as well, but focus primarily on the latest-input.</rule>
    <rule>When you're asked for more details, add more details and be more verbose.</rule>
    <rule>Be friendly, helpful, and interested. Ask questions where appropriate.</rule>
</instructions>

<previous-interactions>
    [[previous_interactions]]
</previous-interactions>

<latest-input>
    [[latest_input]]
</latest-input>

Your Conversational Response:`

const namingPrompt = `Based on the following conversation, provide a short, descriptive title (max 5 words) that captures the main topic or theme:

%s

Title:`

// buildPrompt prepares the assistant prompt for the latest input plus the
// retained interaction trail.
func buildPrompt(assistantName, companionName, latestInput string, previous []Interaction) string {
	turns := make([]string, 0, len(previous))
	for _, it := range previous {
		turns = append(turns, fmt.Sprintf("<interaction>\n    <role>%s</role>\n    <content>%s</content>\n</interaction>", it.Role, it.Content))
	}
	prompt := fmt.Sprintf(promptHead, assistantName, companionName, companionName)
	prompt = strings.Replace(prompt, "[[previous_interactions]]", strings.Join(turns, "\n"), 1)
	prompt = strings.Replace(prompt, "[[latest_input]]", latestInput, 1)
	return prompt
}

// buildNamingPrompt prepares the conversation-naming prompt.
func buildNamingPrompt(conversation string) string {
	return fmt.Sprintf(namingPrompt, conversation)
}

// clampTitle enforces the five-word ceiling on generated titles.
func clampTitle(title string) string {
	words := strings.Fields(strings.TrimSpace(title))
	if len(words) > 5 {
		words = words[:5]
	}
	return strings.Join(words, " ")
}
