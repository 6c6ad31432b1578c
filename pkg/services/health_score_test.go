package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/visibility-engine/pkg/models"
)

func TestCalculateHealthScore(t *testing.T) {
	tests := []struct {
		name          string
		visibility    float64
		sentiment     float64
		hallucination float64
		want          int
	}{
		{"half rounds up", 80, 0.5, 0, 83},
		{"worst case keeps hallucination floor", 0, -1, 1, 14},
		{"best case", 100, 1, 0, 100},
		{"neutral midpoint", 50, 0, 0, 60},
		{"out of range inputs clamp", 500, 5, 0, 100},
		{"negative inputs clamp", -500, -5, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateHealthScore(tt.visibility, tt.sentiment, tt.hallucination))
		})
	}
}

func TestBuildHealthScore(t *testing.T) {
	brandID := uuid.New()
	day := time.Date(2026, 3, 14, 22, 30, 0, 0, time.UTC)

	results := []*models.MonitoringResult{
		{BrandMentioned: true, VisibilityScore: 80, SentimentScore: ptr(0.5)},
		{BrandMentioned: true, VisibilityScore: 60, SentimentScore: ptr(0.1), HasHallucination: true},
		{BrandMentioned: false, VisibilityScore: 0, SentimentScore: nil},
		{BrandMentioned: false, VisibilityScore: 20, SentimentScore: ptr(-0.3)},
	}

	score := BuildHealthScore(brandID, day, results)

	require.NotNil(t, score)
	assert.Equal(t, brandID, score.BrandID)
	assert.Equal(t, "2026-03-14", score.Date)
	assert.Equal(t, 4, score.TotalChecks)
	assert.Equal(t, 2, score.MentionCount)
	assert.Equal(t, 50.0, score.MentionRate)
	assert.Equal(t, 40.0, score.VisibilityScore)
	assert.Equal(t, 0.1, score.SentimentScore, "nil sentiment excluded from the average")
	assert.Equal(t, 0.25, score.HallucinationRate)
	assert.Equal(t, CalculateHealthScore(40, 0.1, 0.25), score.Score)
}

func TestBuildHealthScore_Empty(t *testing.T) {
	score := BuildHealthScore(uuid.New(), time.Now(), nil)

	assert.Zero(t, score.TotalChecks)
	assert.Zero(t, score.Score)
	assert.Zero(t, score.MentionRate)
}

func TestCountMentioned_SkipsNil(t *testing.T) {
	assert.Equal(t, 1, countMentioned([]*models.MonitoringResult{nil, {BrandMentioned: true}, {}}))
}

func ptr[T any](v T) *T {
	return &v
}
