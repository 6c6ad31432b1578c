package models

import "strings"

// Engine identifies an AI search engine whose answers are simulated.
type Engine string

const (
	EngineChatGPT    Engine = "chatgpt"
	EnginePerplexity Engine = "perplexity"
	EngineGemini     Engine = "gemini"
	EngineClaude     Engine = "claude"
	EngineCopilot    Engine = "copilot"
)

// AllEngines lists every supported engine in display order.
var AllEngines = []Engine{EngineChatGPT, EnginePerplexity, EngineGemini, EngineClaude, EngineCopilot}

var engineDisplayNames = map[Engine]string{
	EngineChatGPT:    "ChatGPT",
	EnginePerplexity: "Perplexity",
	EngineGemini:     "Gemini",
	EngineClaude:     "Claude",
	EngineCopilot:    "Copilot",
}

// ParseEngine normalizes an engine identifier. Returns false for unknown engines.
func ParseEngine(s string) (Engine, bool) {
	e := Engine(strings.ToLower(strings.TrimSpace(s)))
	_, ok := engineDisplayNames[e]
	return e, ok
}

// Valid reports whether e is one of the supported engines.
func (e Engine) Valid() bool {
	_, ok := engineDisplayNames[e]
	return ok
}

// DisplayName returns the human-facing engine name, or the raw id for unknown engines.
func (e Engine) DisplayName() string {
	if name, ok := engineDisplayNames[e]; ok {
		return name
	}
	return string(e)
}

// SimulationRequest asks a provider to role-play one engine answering one prompt.
type SimulationRequest struct {
	PromptText string
	Engine     Engine
}
