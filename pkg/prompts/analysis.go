package prompts

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/visibility-engine/pkg/models"
)

// MaxAnalyzedResponseChars bounds how much of the simulated answer is embedded
// in the analysis prompt.
const MaxAnalyzedResponseChars = 3000

// AnalysisContext is everything the analyze chain needs to judge one answer.
type AnalysisContext struct {
	BrandName         string
	Aliases           []string
	Domain            string
	Competitors       []string
	PromptText        string
	SimulatedResponse string
}

// NewAnalysisContext builds the context for a brand, prompt and simulated answer.
func NewAnalysisContext(brand *models.Brand, promptText, response string) AnalysisContext {
	return AnalysisContext{
		BrandName:         brand.Name,
		Aliases:           brand.Aliases,
		Domain:            brand.Domain,
		Competitors:       brand.Competitors,
		PromptText:        promptText,
		SimulatedResponse: response,
	}
}

// BuildAnalysisPrompt creates the prompt asking for a JSON judgement of the
// simulated answer: mention, position, sentiment, citations, competitors and
// hallucinated claims about the brand.
func BuildAnalysisPrompt(ac AnalysisContext) string {
	var prompt strings.Builder

	prompt.WriteString("# Brand Visibility Analysis\n\n")
	prompt.WriteString("Analyze how the AI answer below presents the brand.\n\n")

	prompt.WriteString("## Brand\n\n")
	prompt.WriteString(fmt.Sprintf("Name: %s\n", ac.BrandName))
	if len(ac.Aliases) > 0 {
		prompt.WriteString(fmt.Sprintf("Also known as: %s\n", strings.Join(ac.Aliases, ", ")))
	}
	if ac.Domain != "" {
		prompt.WriteString(fmt.Sprintf("Website: %s\n", ac.Domain))
	}
	if len(ac.Competitors) > 0 {
		prompt.WriteString(fmt.Sprintf("Known competitors: %s\n", strings.Join(ac.Competitors, ", ")))
	}

	prompt.WriteString("\n## User Question\n\n")
	prompt.WriteString(ac.PromptText)
	prompt.WriteString("\n\n## AI Answer\n\n")
	prompt.WriteString(truncateRunes(ac.SimulatedResponse, MaxAnalyzedResponseChars))
	prompt.WriteString("\n\n")

	prompt.WriteString("## Instructions\n\n")
	prompt.WriteString("- brandMentioned: true if the brand or any alias appears.\n")
	prompt.WriteString("- mentionPosition: 1-based rank of the brand among recommended options, or null if not mentioned.\n")
	prompt.WriteString("- mentionCount: number of times the brand or an alias appears.\n")
	prompt.WriteString("- mentionType: \"direct\" (named), \"indirect\" (described or linked without the name) or \"none\".\n")
	prompt.WriteString("- visibilityScore: 0-100, how prominent and favorable the brand's placement is.\n")
	prompt.WriteString("- sentiment: \"positive\", \"negative\" or \"neutral\" toward the brand; sentimentScore from -1 to 1.\n")
	prompt.WriteString("- citedUrls: every URL in the answer.\n")
	prompt.WriteString("- competitorMentions: competitors that appear, with 1-based position (0 if unranked) and count.\n")
	prompt.WriteString("- hasHallucination / hallucinationFlags: claims about the brand that are likely false. ")
	prompt.WriteString("Severity is \"low\", \"medium\" or \"high\"; type is \"factual_error\", \"attribution_error\", \"fabrication\" or \"date_error\".\n\n")

	prompt.WriteString("## Response Format\n\n")
	prompt.WriteString("Respond with a single JSON object and nothing else:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "brandMentioned": true,
  "mentionPosition": 2,
  "mentionCount": 3,
  "mentionType": "direct",
  "visibilityScore": 72,
  "sentiment": "positive",
  "sentimentScore": 0.6,
  "citedUrls": ["https://example.com/review"],
  "competitorMentions": [{"name": "Competitor", "position": 1, "count": 2}],
  "hasHallucination": false,
  "hallucinationFlags": []
}`)
	prompt.WriteString("\n```\n")

	return prompt.String()
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
