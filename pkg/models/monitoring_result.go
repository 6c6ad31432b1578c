package models

import (
	"time"

	"github.com/google/uuid"
)

// MonitoringResult is the pre-insert payload of one (prompt, engine) run.
// It is immutable once persisted; later runs read it back as the previous result.
//
// SentimentScore and MentionPosition are pointers because records read back
// from storage may predate those columns.
type MonitoringResult struct {
	ID                 uuid.UUID           `json:"id"`
	PromptID           uuid.UUID           `json:"prompt_id"`
	BrandID            uuid.UUID           `json:"brand_id"`
	Engine             Engine              `json:"engine"`
	ResponseText       string              `json:"response_text"`
	BrandMentioned     bool                `json:"brand_mentioned"`
	MentionPosition    *int                `json:"mention_position"`
	MentionCount       int                 `json:"mention_count"`
	MentionType        MentionType         `json:"mention_type"`
	VisibilityScore    float64             `json:"visibility_score"`
	Sentiment          Sentiment           `json:"sentiment"`
	SentimentScore     *float64            `json:"sentiment_score"`
	CitedURLs          []string            `json:"cited_urls"`
	CompetitorMentions []CompetitorMention `json:"competitor_mentions"`
	HasHallucination   bool                `json:"has_hallucination"`
	HallucinationFlags []HallucinationFlag `json:"hallucination_flags"`
	CreatedAt          time.Time           `json:"created_at"`
}

// BrandHealthScore is the daily rollup of a batch of monitoring results.
type BrandHealthScore struct {
	BrandID           uuid.UUID `json:"brand_id"`
	Date              string    `json:"date"` // YYYY-MM-DD
	VisibilityScore   float64   `json:"visibility_score"`
	SentimentScore    float64   `json:"sentiment_score"`
	HallucinationRate float64   `json:"hallucination_rate"`
	MentionRate       float64   `json:"mention_rate"`
	MentionCount      int       `json:"mention_count"`
	TotalChecks       int       `json:"total_checks"`
	Score             int       `json:"score"`
}
