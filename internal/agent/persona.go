package agent

import (
	"fmt"
	"strings"
)

const (
	FarewellText = "Thanks for learning with LearnSphere! Feel free to come back anytime to continue your Web3 journey. Good luck with your quests! 🚀"
	ApologyText  = "I'm having trouble connecting to my AI assistant right now. Please try asking about LearnSphere quests again in a moment!"

	NoQuestText          = "No quests available at the moment."
	QuestUnavailableText = "Unable to retrieve quest information."
	SummaryUnavailable   = "Unable to retrieve all quests information."
)

var closingPhrases = map[string]struct{}{
	"bye":         {},
	"goodbye":     {},
	"end session": {},
	"quit":        {},
	"exit":        {},
}

// IsClosingPhrase matches the whole message, case-insensitively, after trimming.
// "bye now" is not a closing phrase.
func IsClosingPhrase(text string) bool {
	_, ok := closingPhrases[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

const personaPrompt = `You are the LearnSphere Quest Assistant, an expert in blockchain learning, Internet Computer Protocol (ICP), and Fetch.ai.

Your role is to help users with:
- Understanding blockchain concepts and technologies
- Guiding them through LearnSphere learning quests
- Explaining ICP smart contracts and canisters
- Teaching about Fetch.ai agents and autonomous systems
- Providing educational support for Web3 development

Guidelines:
- Be encouraging and educational
- Provide clear, conversational explanations
- Use simple formatting - avoid complex markdown or special characters
- Keep responses concise but helpful (2-3 paragraphs max)
- Suggest relevant quests when appropriate
- If asked about quest completion, explain they need to read the provided links and use the canister functions
- Always be helpful and motivating about their learning journey

Formatting rules:
- Write in a natural, conversational tone
- Use simple bullet points with - or * if needed
- Avoid complex formatting, tables, or special characters
- Keep it readable in a chat interface
- No emojis in structured lists

If users ask about topics outside of blockchain, Web3, ICP, Fetch.ai, or learning - politely redirect them back to educational content.`

// PersonaPrompt is the fixed system instruction sent with every completion.
func PersonaPrompt() string {
	return personaPrompt
}

func renderContext(questBlock, summary string) string {
	return fmt.Sprintf("Current Quest Status:\n%s\n\nAvailable Quests Overview:\n%s", questBlock, summary)
}
