package services

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/visibility-engine/pkg/models"
)

// Health score weights. The hallucination penalty is applied to the last
// component before weighting.
const (
	visibilityWeight         = 0.5
	sentimentWeight          = 0.3
	hallucinationWeight      = 0.2
	hallucinationPenaltyRate = 30.0
)

// HealthScoreDateLayout is the format of BrandHealthScore.Date.
const HealthScoreDateLayout = "2006-01-02"

// CalculateHealthScore rolls visibility (0-100), sentiment (-1..1) and
// hallucination rate (0..1) into a 0-100 score.
func CalculateHealthScore(visibilityScore, sentimentScore, hallucinationRate float64) int {
	normalizedSentiment := (sentimentScore + 1) / 2 * 100
	hallucinationComponent := 100 - hallucinationRate*hallucinationPenaltyRate

	raw := visibilityScore*visibilityWeight +
		normalizedSentiment*sentimentWeight +
		hallucinationComponent*hallucinationWeight

	// Snap away float noise so exact halves (82.5) round up consistently.
	raw = math.Round(raw*1e9) / 1e9
	return int(clamp(math.Round(raw), 0, 100))
}

// BuildHealthScore aggregates one batch of results for a brand and day.
// Visibility and hallucination rate are averaged over every result; sentiment
// only over results that carry a sentiment score. An empty batch yields a
// zero score with no checks.
func BuildHealthScore(brandID uuid.UUID, date time.Time, results []*models.MonitoringResult) *models.BrandHealthScore {
	score := &models.BrandHealthScore{
		BrandID: brandID,
		Date:    date.UTC().Format(HealthScoreDateLayout),
	}

	var (
		visibilitySum  float64
		sentimentSum   float64
		sentimentCount int
		hallucinated   int
	)
	for _, r := range results {
		if r == nil {
			continue
		}
		score.TotalChecks++
		visibilitySum += r.VisibilityScore
		if r.SentimentScore != nil {
			sentimentSum += *r.SentimentScore
			sentimentCount++
		}
		if r.HasHallucination {
			hallucinated++
		}
	}
	if score.TotalChecks == 0 {
		return score
	}

	total := float64(score.TotalChecks)
	score.VisibilityScore = round2(visibilitySum / total)
	if sentimentCount > 0 {
		score.SentimentScore = round2(sentimentSum / float64(sentimentCount))
	}
	score.HallucinationRate = round2(float64(hallucinated) / total)

	score.MentionCount = countMentioned(results)
	score.MentionRate = round2(float64(score.MentionCount) / total * 100)

	score.Score = CalculateHealthScore(score.VisibilityScore, score.SentimentScore, score.HallucinationRate)
	return score
}

// countMentioned is the single definition of "mentioned" used for both the
// mention count and the mention rate.
func countMentioned(results []*models.MonitoringResult) int {
	n := 0
	for _, r := range results {
		if r != nil && r.BrandMentioned {
			n++
		}
	}
	return n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
