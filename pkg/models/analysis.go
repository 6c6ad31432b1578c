package models

// MentionType classifies how a brand appears in a response.
type MentionType string

const (
	MentionDirect   MentionType = "direct"
	MentionIndirect MentionType = "indirect"
	MentionNone     MentionType = "none"
)

// Sentiment is the tone of a response toward the brand.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// FlagSeverity grades a hallucination flag.
type FlagSeverity string

const (
	SeverityLow    FlagSeverity = "low"
	SeverityMedium FlagSeverity = "medium"
	SeverityHigh   FlagSeverity = "high"
)

// FlagType categorizes a fabricated claim.
type FlagType string

const (
	FlagFactualError     FlagType = "factual_error"
	FlagAttributionError FlagType = "attribution_error"
	FlagFabrication      FlagType = "fabrication"
	FlagDateError        FlagType = "date_error"
)

// Score ranges.
const (
	MinVisibilityScore = 0.0
	MaxVisibilityScore = 100.0
	MinSentimentScore  = -1.0
	MaxSentimentScore  = 1.0
)

// CompetitorMention records a competitor appearing in a response.
// Position 0 means the competitor was not ranked.
type CompetitorMention struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
	Count    int    `json:"count"`
}

// HallucinationFlag is one suspected fabricated claim.
type HallucinationFlag struct {
	Text     string       `json:"text"`
	Severity FlagSeverity `json:"severity"`
	Type     FlagType     `json:"type"`
}

// AnalysisOutput is the validated judgement of a simulated response.
// Every slice is non-nil and every score is within its declared range.
type AnalysisOutput struct {
	BrandMentioned     bool                `json:"brandMentioned"`
	MentionPosition    *int                `json:"mentionPosition"`
	MentionCount       int                 `json:"mentionCount"`
	MentionType        MentionType         `json:"mentionType"`
	VisibilityScore    float64             `json:"visibilityScore"`
	Sentiment          Sentiment           `json:"sentiment"`
	SentimentScore     float64             `json:"sentimentScore"`
	CitedURLs          []string            `json:"citedUrls"`
	CompetitorMentions []CompetitorMention `json:"competitorMentions"`
	HasHallucination   bool                `json:"hasHallucination"`
	HallucinationFlags []HallucinationFlag `json:"hallucinationFlags"`
}
