package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/visibility-engine/pkg/models"
)

func rule(ruleType models.AlertRuleType, cond models.AlertCondition) *models.AlertRule {
	return &models.AlertRule{ID: uuid.New(), BrandID: uuid.New(), Type: ruleType, Condition: cond, IsActive: true}
}

func TestShouldFire_MentionNew(t *testing.T) {
	r := rule(models.AlertMentionNew, models.AlertCondition{})

	assert.True(t, ShouldFire(r, EvaluationInput{Result: &models.MonitoringResult{BrandMentioned: true}}))
	assert.True(t, ShouldFire(r, EvaluationInput{
		Result:         &models.MonitoringResult{BrandMentioned: true},
		PreviousResult: &models.MonitoringResult{BrandMentioned: false},
	}))
	assert.False(t, ShouldFire(r, EvaluationInput{
		Result:         &models.MonitoringResult{BrandMentioned: true},
		PreviousResult: &models.MonitoringResult{BrandMentioned: true},
	}), "not newly mentioned")
	assert.False(t, ShouldFire(r, EvaluationInput{Result: &models.MonitoringResult{BrandMentioned: false}}))
}

func TestShouldFire_MentionLost(t *testing.T) {
	r := rule(models.AlertMentionLost, models.AlertCondition{})

	assert.True(t, ShouldFire(r, EvaluationInput{
		Result:         &models.MonitoringResult{BrandMentioned: false},
		PreviousResult: &models.MonitoringResult{BrandMentioned: true},
	}))
	assert.False(t, ShouldFire(r, EvaluationInput{Result: &models.MonitoringResult{BrandMentioned: false}}), "no previous run")
	assert.False(t, ShouldFire(r, EvaluationInput{
		Result:         &models.MonitoringResult{BrandMentioned: false},
		PreviousResult: &models.MonitoringResult{BrandMentioned: false},
	}))
}

func TestShouldFire_Sentiment(t *testing.T) {
	tests := []struct {
		name     string
		ruleType models.AlertRuleType
		cond     models.AlertCondition
		prev     *float64
		cur      *float64
		want     bool
	}{
		{"drop over default", models.AlertSentimentDrop, models.AlertCondition{}, ptr(0.8), ptr(0.4), true},
		{"drop under default", models.AlertSentimentDrop, models.AlertCondition{}, ptr(0.8), ptr(0.6), false},
		{"drop exactly threshold", models.AlertSentimentDrop, models.AlertCondition{}, ptr(0.5), ptr(0.2), true},
		{"drop custom threshold", models.AlertSentimentDrop, models.AlertCondition{Threshold: ptr(0.1)}, ptr(0.8), ptr(0.6), true},
		{"drop ignores rise", models.AlertSentimentDrop, models.AlertCondition{}, ptr(0.1), ptr(0.9), false},
		{"drop missing previous score", models.AlertSentimentDrop, models.AlertCondition{}, nil, ptr(-1.0), false},
		{"drop missing current score", models.AlertSentimentDrop, models.AlertCondition{}, ptr(1.0), nil, false},
		{"spike over default", models.AlertSentimentSpike, models.AlertCondition{}, ptr(-0.2), ptr(0.3), true},
		{"spike under default", models.AlertSentimentSpike, models.AlertCondition{}, ptr(0.2), ptr(0.4), false},
		{"spike ignores drop", models.AlertSentimentSpike, models.AlertCondition{}, ptr(0.9), ptr(0.1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := EvaluationInput{
				Result:         &models.MonitoringResult{SentimentScore: tt.cur},
				PreviousResult: &models.MonitoringResult{SentimentScore: tt.prev},
			}
			assert.Equal(t, tt.want, ShouldFire(rule(tt.ruleType, tt.cond), in))
		})
	}

	assert.False(t, ShouldFire(rule(models.AlertSentimentDrop, models.AlertCondition{}),
		EvaluationInput{Result: &models.MonitoringResult{SentimentScore: ptr(0.0)}}), "no previous run")
}

func TestShouldFire_CompetitorAhead(t *testing.T) {
	result := &models.MonitoringResult{
		BrandMentioned:  true,
		MentionPosition: ptr(3),
		CompetitorMentions: []models.CompetitorMention{
			{Name: "Globex", Position: 1},
			{Name: "Initech", Position: 5},
			{Name: "Hooli", Position: 0},
		},
	}

	tests := []struct {
		name       string
		competitor string
		result     *models.MonitoringResult
		want       bool
	}{
		{"any competitor ahead", "", result, true},
		{"named competitor ahead", "globex", result, true},
		{"named competitor behind", "Initech", result, false},
		{"unranked competitor never ahead", "Hooli", result, false},
		{"absent competitor", "Umbrella", result, false},
		{
			name:   "unranked brand loses to ranked competitor",
			result: &models.MonitoringResult{CompetitorMentions: []models.CompetitorMention{{Name: "Globex", Position: 4}}},
			want:   true,
		},
		{
			name:   "both unranked",
			result: &models.MonitoringResult{CompetitorMentions: []models.CompetitorMention{{Name: "Globex"}}},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := rule(models.AlertCompetitorAhead, models.AlertCondition{Competitor: tt.competitor})
			assert.Equal(t, tt.want, ShouldFire(r, EvaluationInput{Result: tt.result}))
		})
	}
}

func TestShouldFire_Hallucination(t *testing.T) {
	lowOnly := &models.MonitoringResult{
		HasHallucination:   true,
		HallucinationFlags: []models.HallucinationFlag{{Text: "x", Severity: models.SeverityLow}},
	}
	severe := &models.MonitoringResult{
		HasHallucination:   true,
		HallucinationFlags: []models.HallucinationFlag{{Text: "x", Severity: models.SeverityLow}, {Text: "y", Severity: models.SeverityHigh}},
	}
	clean := &models.MonitoringResult{HasHallucination: false}

	noThreshold := rule(models.AlertHallucination, models.AlertCondition{})
	withThreshold := rule(models.AlertHallucination, models.AlertCondition{Threshold: ptr(1.0)})

	assert.True(t, ShouldFire(noThreshold, EvaluationInput{Result: lowOnly}))
	assert.True(t, ShouldFire(noThreshold, EvaluationInput{Result: &models.MonitoringResult{HasHallucination: true}}))
	assert.False(t, ShouldFire(noThreshold, EvaluationInput{Result: clean}))
	assert.False(t, ShouldFire(withThreshold, EvaluationInput{Result: lowOnly}), "threshold requires a medium or high flag")
	assert.True(t, ShouldFire(withThreshold, EvaluationInput{Result: severe}))
}

func TestShouldFire_VisibilityChange(t *testing.T) {
	tests := []struct {
		name string
		cond models.AlertCondition
		prev float64
		cur  float64
		want bool
	}{
		{"rise over default", models.AlertCondition{}, 40, 65, true},
		{"fall over default", models.AlertCondition{}, 65, 40, true},
		{"exactly default", models.AlertCondition{}, 50, 70, true},
		{"under default", models.AlertCondition{}, 50, 60, false},
		{"custom threshold", models.AlertCondition{Threshold: ptr(5.0)}, 50, 56, true},
		{"increase only ignores fall", models.AlertCondition{Operator: models.OperatorIncrease}, 80, 20, false},
		{"increase only fires on rise", models.AlertCondition{Operator: models.OperatorIncrease}, 20, 80, true},
		{"decrease only ignores rise", models.AlertCondition{Operator: models.OperatorDecrease}, 20, 80, false},
		{"decrease only fires on fall", models.AlertCondition{Operator: models.OperatorDecrease}, 80, 20, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := EvaluationInput{
				Result:         &models.MonitoringResult{VisibilityScore: tt.cur},
				PreviousResult: &models.MonitoringResult{VisibilityScore: tt.prev},
			}
			assert.Equal(t, tt.want, ShouldFire(rule(models.AlertVisibilityChange, tt.cond), in))
		})
	}

	assert.False(t, ShouldFire(rule(models.AlertVisibilityChange, models.AlertCondition{}),
		EvaluationInput{Result: &models.MonitoringResult{VisibilityScore: 100}}), "no previous run")
}

func TestShouldFire_Filters(t *testing.T) {
	result := &models.MonitoringResult{Engine: models.EngineGemini, BrandMentioned: true, Sentiment: models.SentimentNegative}

	assert.True(t, ShouldFire(rule(models.AlertMentionNew, models.AlertCondition{Engine: models.EngineGemini}), EvaluationInput{Result: result}))
	assert.False(t, ShouldFire(rule(models.AlertMentionNew, models.AlertCondition{Engine: models.EngineChatGPT}), EvaluationInput{Result: result}))
	assert.True(t, ShouldFire(rule(models.AlertMentionNew, models.AlertCondition{Sentiment: models.SentimentNegative}), EvaluationInput{Result: result}))
	assert.False(t, ShouldFire(rule(models.AlertMentionNew, models.AlertCondition{Sentiment: models.SentimentPositive}), EvaluationInput{Result: result}))
}

func TestShouldFire_UnknownAndNil(t *testing.T) {
	result := &models.MonitoringResult{BrandMentioned: true}

	assert.False(t, ShouldFire(rule("brand_renamed", models.AlertCondition{}), EvaluationInput{Result: result}))
	assert.False(t, ShouldFire(nil, EvaluationInput{Result: result}))
	assert.False(t, ShouldFire(rule(models.AlertMentionNew, models.AlertCondition{}), EvaluationInput{}))
}

func TestBuildEvent(t *testing.T) {
	brand := &models.Brand{ID: uuid.New(), Name: "Acme"}
	result := &models.MonitoringResult{
		ID:              uuid.New(),
		PromptID:        uuid.New(),
		Engine:          models.EnginePerplexity,
		BrandMentioned:  true,
		MentionPosition: ptr(2),
		VisibilityScore: 64,
		Sentiment:       models.SentimentNegative,
		SentimentScore:  ptr(-0.45),
		CompetitorMentions: []models.CompetitorMention{
			{Name: "Globex", Position: 1},
		},
		HallucinationFlags: []models.HallucinationFlag{{Severity: models.SeverityHigh}, {Severity: models.SeverityLow}},
	}

	tests := []struct {
		ruleType    models.AlertRuleType
		wantTitle   string
		wantMessage string
	}{
		{models.AlertMentionNew, "Acme is now mentioned on Perplexity", "visibility score of 64"},
		{models.AlertMentionLost, "Acme is no longer mentioned on Perplexity", "did not appear"},
		{models.AlertSentimentDrop, "Sentiment dropped for Acme on Perplexity", "negative (-0.45)"},
		{models.AlertSentimentSpike, "Sentiment improved for Acme on Perplexity", "rose to"},
		{models.AlertCompetitorAhead, "Competitor ranked above Acme on Perplexity", "Globex ranked above Acme"},
		{models.AlertHallucination, "Possible hallucination about Acme on Perplexity", "2 questionable claim(s)"},
		{models.AlertVisibilityChange, "Visibility changed for Acme on Perplexity", "is now 64"},
		{"brand_renamed", "Alert for Acme", `Rule "brand_renamed" fired`},
	}

	for _, tt := range tests {
		t.Run(string(tt.ruleType), func(t *testing.T) {
			r := rule(tt.ruleType, models.AlertCondition{})
			event := BuildEvent(r, result, brand)

			require.NotNil(t, event)
			assert.NotEqual(t, uuid.Nil, event.ID)
			assert.Equal(t, r.ID, event.AlertRuleID)
			assert.Equal(t, r.BrandID, event.BrandID)
			assert.Equal(t, tt.ruleType, event.Type)
			assert.Equal(t, tt.wantTitle, event.Title)
			assert.Contains(t, event.Message, tt.wantMessage)
			assert.NotNil(t, event.ChannelsSent)
			assert.Empty(t, event.ChannelsSent)
			assert.False(t, event.IsRead)
			assert.Equal(t, "perplexity", event.Data["engine"])
			assert.Equal(t, 2, event.Data["mention_position"])
		})
	}
}

func TestBuildEvent_TypeSpecificData(t *testing.T) {
	result := &models.MonitoringResult{
		Engine:             models.EngineChatGPT,
		CompetitorMentions: []models.CompetitorMention{{Name: "Globex", Position: 1}, {Name: "Initech", Position: 2}},
		HallucinationFlags: []models.HallucinationFlag{{Severity: models.SeverityMedium}},
	}

	competitor := BuildEvent(rule(models.AlertCompetitorAhead, models.AlertCondition{}), result, nil)
	assert.Equal(t, []string{"Globex", "Initech"}, competitor.Data["competitors_ahead"])
	assert.Contains(t, competitor.Message, "Globex and Initech ranked above your brand")

	hallucination := BuildEvent(rule(models.AlertHallucination, models.AlertCondition{}), result, nil)
	assert.Equal(t, 1, hallucination.Data["flag_count"])
	assert.Equal(t, 1, hallucination.Data["severe_flag_count"])
}
