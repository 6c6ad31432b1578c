package prompts

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/visibility-engine/pkg/models"
)

// Simulated answers aim for this word range so analysis sees a realistic answer length.
const (
	SimulationMinWords = 150
	SimulationMaxWords = 300
)

var enginePersonas = map[models.Engine]string{
	models.EngineChatGPT: "You are ChatGPT, OpenAI's conversational assistant. Answer in a friendly, " +
		"well-structured way, often using short numbered or bulleted lists of recommendations. " +
		"You rely on your training knowledge and rarely cite sources.",
	models.EnginePerplexity: "You are Perplexity, an answer engine that searches the web. Give a concise, " +
		"factual synthesis and cite sources inline as bracketed numbers followed by their URLs. " +
		"Prefer recent, authoritative sources.",
	models.EngineGemini: "You are Gemini, Google's AI assistant. Give a balanced overview grounded in " +
		"widely known information, organized under short headings, and mention well-established " +
		"options before niche ones.",
	models.EngineClaude: "You are Claude, Anthropic's AI assistant. Give a careful, nuanced answer that " +
		"weighs trade-offs, notes uncertainty where it exists, and avoids overstating claims.",
	models.EngineCopilot: "You are Microsoft Copilot, an assistant grounded in Bing search. Give a practical " +
		"answer with a brief summary first, then key options, and reference web sources where helpful.",
}

// EnginePersona returns the role-play instructions for an engine.
// Unknown engines get a neutral assistant persona.
func EnginePersona(engine models.Engine) string {
	if persona, ok := enginePersonas[engine]; ok {
		return persona
	}
	return "You are a helpful AI search assistant. Answer clearly and recommend relevant options."
}

// BuildSimulationPrompt combines the engine persona, the user's question and a
// length target into the prompt sent to the simulate chain.
func BuildSimulationPrompt(engine models.Engine, promptText string) string {
	var prompt strings.Builder

	prompt.WriteString(EnginePersona(engine))
	prompt.WriteString("\n\n")
	prompt.WriteString("Answer the following user question exactly as you normally would. ")
	prompt.WriteString("Do not mention that this is a simulation.\n\n")
	prompt.WriteString(fmt.Sprintf("Question: %s\n\n", strings.TrimSpace(promptText)))
	prompt.WriteString(fmt.Sprintf("Keep the answer between %d and %d words.", SimulationMinWords, SimulationMaxWords))

	return prompt.String()
}
