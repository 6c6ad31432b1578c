package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/visibility-engine/pkg/models"
)

// Default thresholds when a rule's condition sets none.
const (
	DefaultSentimentThreshold  = 0.3
	DefaultVisibilityThreshold = 20.0
)

// unrankedPosition stands in for a missing mention position when comparing ranks.
const unrankedPosition = 999

// thresholdEpsilon makes a delta exactly equal to the threshold fire despite float error.
const thresholdEpsilon = 1e-9

// EvaluationInput is the state a rule is evaluated against.
// PreviousResult is the prior run for the same prompt and engine, if any.
type EvaluationInput struct {
	Result         *models.MonitoringResult
	PreviousResult *models.MonitoringResult
	Brand          *models.Brand
}

// ShouldFire reports whether rule's condition holds for the input.
// It has no side effects; unknown rule types never fire.
func ShouldFire(rule *models.AlertRule, in EvaluationInput) bool {
	if rule == nil || in.Result == nil {
		return false
	}
	cond := rule.Condition
	cur, prev := in.Result, in.PreviousResult

	if cond.Engine != "" && cond.Engine != cur.Engine {
		return false
	}
	if cond.Sentiment != "" && !strings.EqualFold(string(cond.Sentiment), string(cur.Sentiment)) {
		return false
	}

	switch rule.Type {
	case models.AlertMentionNew:
		return cur.BrandMentioned && (prev == nil || !prev.BrandMentioned)

	case models.AlertMentionLost:
		return !cur.BrandMentioned && prev != nil && prev.BrandMentioned

	case models.AlertSentimentDrop:
		if prev == nil || prev.SentimentScore == nil || cur.SentimentScore == nil {
			return false
		}
		return atLeast(*prev.SentimentScore-*cur.SentimentScore, threshold(cond, DefaultSentimentThreshold))

	case models.AlertSentimentSpike:
		if prev == nil || prev.SentimentScore == nil || cur.SentimentScore == nil {
			return false
		}
		return atLeast(*cur.SentimentScore-*prev.SentimentScore, threshold(cond, DefaultSentimentThreshold))

	case models.AlertCompetitorAhead:
		return len(competitorsAhead(cur, cond.Competitor)) > 0

	case models.AlertHallucination:
		if !cur.HasHallucination {
			return false
		}
		if cond.Threshold == nil {
			return true
		}
		return countSevereFlags(cur.HallucinationFlags) > 0

	case models.AlertVisibilityChange:
		if prev == nil {
			return false
		}
		delta := cur.VisibilityScore - prev.VisibilityScore
		limit := threshold(cond, DefaultVisibilityThreshold)
		switch cond.Operator {
		case models.OperatorIncrease:
			return atLeast(delta, limit)
		case models.OperatorDecrease:
			return atLeast(-delta, limit)
		default:
			return atLeast(math.Abs(delta), limit)
		}
	}

	return false
}

func threshold(cond models.AlertCondition, def float64) float64 {
	if cond.Threshold != nil {
		return *cond.Threshold
	}
	return def
}

func atLeast(v, limit float64) bool {
	return v >= limit-thresholdEpsilon
}

func rankOf(position *int) int {
	if position == nil || *position < 1 {
		return unrankedPosition
	}
	return *position
}

// competitorsAhead returns the competitors ranked above the brand. An empty
// filter matches any competitor.
func competitorsAhead(r *models.MonitoringResult, filter string) []models.CompetitorMention {
	brandRank := rankOf(r.MentionPosition)
	var ahead []models.CompetitorMention
	for _, c := range r.CompetitorMentions {
		if filter != "" && !strings.EqualFold(strings.TrimSpace(filter), c.Name) {
			continue
		}
		pos := c.Position
		if rankOf(&pos) < brandRank {
			ahead = append(ahead, c)
		}
	}
	return ahead
}

func countSevereFlags(flags []models.HallucinationFlag) int {
	n := 0
	for _, f := range flags {
		if f.Severity == models.SeverityMedium || f.Severity == models.SeverityHigh {
			n++
		}
	}
	return n
}

// BuildEvent creates the AlertEvent for a rule that fired on result.
// ChannelsSent starts empty and is filled in by the dispatcher's caller.
func BuildEvent(rule *models.AlertRule, result *models.MonitoringResult, brand *models.Brand) *models.AlertEvent {
	brandName := "your brand"
	if brand != nil && brand.Name != "" {
		brandName = brand.Name
	}
	engine := result.Engine.DisplayName()

	data := map[string]any{
		"engine":           string(result.Engine),
		"result_id":        result.ID.String(),
		"prompt_id":        result.PromptID.String(),
		"brand_mentioned":  result.BrandMentioned,
		"visibility_score": result.VisibilityScore,
	}
	if result.MentionPosition != nil {
		data["mention_position"] = *result.MentionPosition
	}
	if result.SentimentScore != nil {
		data["sentiment_score"] = *result.SentimentScore
	}

	var title, message string
	switch rule.Type {
	case models.AlertMentionNew:
		title = fmt.Sprintf("%s is now mentioned on %s", brandName, engine)
		message = fmt.Sprintf("%s appeared in a %s answer with a visibility score of %.0f.", brandName, engine, result.VisibilityScore)

	case models.AlertMentionLost:
		title = fmt.Sprintf("%s is no longer mentioned on %s", brandName, engine)
		message = fmt.Sprintf("%s did not appear in the latest %s answer.", brandName, engine)

	case models.AlertSentimentDrop:
		title = fmt.Sprintf("Sentiment dropped for %s on %s", brandName, engine)
		message = fmt.Sprintf("Sentiment toward %s on %s fell to %s.", brandName, engine, formatSentiment(result))

	case models.AlertSentimentSpike:
		title = fmt.Sprintf("Sentiment improved for %s on %s", brandName, engine)
		message = fmt.Sprintf("Sentiment toward %s on %s rose to %s.", brandName, engine, formatSentiment(result))

	case models.AlertCompetitorAhead:
		ahead := competitorsAhead(result, rule.Condition.Competitor)
		names := make([]string, len(ahead))
		for i, c := range ahead {
			names[i] = c.Name
		}
		data["competitors_ahead"] = names
		title = fmt.Sprintf("Competitor ranked above %s on %s", brandName, engine)
		message = fmt.Sprintf("%s ranked above %s in a %s answer.", joinNames(names), brandName, engine)

	case models.AlertHallucination:
		flags := len(result.HallucinationFlags)
		data["flag_count"] = flags
		data["severe_flag_count"] = countSevereFlags(result.HallucinationFlags)
		title = fmt.Sprintf("Possible hallucination about %s on %s", brandName, engine)
		message = fmt.Sprintf("%s made %d questionable claim(s) about %s.", engine, flags, brandName)

	case models.AlertVisibilityChange:
		title = fmt.Sprintf("Visibility changed for %s on %s", brandName, engine)
		message = fmt.Sprintf("The visibility score of %s on %s is now %.0f.", brandName, engine, result.VisibilityScore)

	default:
		title = fmt.Sprintf("Alert for %s", brandName)
		message = fmt.Sprintf("Rule %q fired for %s on %s.", rule.Type, brandName, engine)
	}

	return &models.AlertEvent{
		ID:           uuid.New(),
		AlertRuleID:  rule.ID,
		BrandID:      rule.BrandID,
		Type:         rule.Type,
		Title:        title,
		Message:      message,
		Data:         data,
		ChannelsSent: []string{},
		CreatedAt:    time.Now().UTC(),
	}
}

func formatSentiment(r *models.MonitoringResult) string {
	if r.SentimentScore == nil {
		return string(r.Sentiment)
	}
	return fmt.Sprintf("%s (%.2f)", r.Sentiment, *r.SentimentScore)
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return "A competitor"
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
