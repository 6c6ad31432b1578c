package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertRuleType is the condition kind a rule watches for.
type AlertRuleType string

const (
	AlertMentionNew       AlertRuleType = "mention_new"
	AlertMentionLost      AlertRuleType = "mention_lost"
	AlertSentimentDrop    AlertRuleType = "sentiment_drop"
	AlertSentimentSpike   AlertRuleType = "sentiment_spike"
	AlertCompetitorAhead  AlertRuleType = "competitor_ahead"
	AlertHallucination    AlertRuleType = "hallucination"
	AlertVisibilityChange AlertRuleType = "visibility_change"
)

// AlertChannel is a delivery mechanism for fired alerts.
type AlertChannel string

const (
	ChannelEmail   AlertChannel = "email"
	ChannelWebhook AlertChannel = "webhook"
)

// Visibility-change direction operators. Anything else means either direction.
const (
	OperatorIncrease = "increase"
	OperatorDecrease = "decrease"
)

// AlertCondition holds the type-specific parameters of a rule.
// Only the fields relevant to the rule type are set.
type AlertCondition struct {
	Threshold  *float64  `json:"threshold,omitempty"`
	Operator   string    `json:"operator,omitempty"`
	Engine     Engine    `json:"engine,omitempty"`
	Competitor string    `json:"competitor,omitempty"`
	Sentiment  Sentiment `json:"sentiment,omitempty"`
}

// AlertRule is a user-defined watch on a brand.
// The core only mutates LastFiredAt; IsActive is toggled by users.
type AlertRule struct {
	ID          uuid.UUID      `json:"id"`
	BrandID     uuid.UUID      `json:"brand_id"`
	Type        AlertRuleType  `json:"type"`
	Condition   AlertCondition `json:"condition"`
	Channels    []AlertChannel `json:"channels"`
	Email       string         `json:"email,omitempty"`
	WebhookURL  string         `json:"webhook_url,omitempty"`
	IsActive    bool           `json:"is_active"`
	LastFiredAt *time.Time     `json:"last_fired_at,omitempty"`
}

// HasChannel reports whether the rule lists the given channel.
func (r *AlertRule) HasChannel(ch AlertChannel) bool {
	for _, c := range r.Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// AlertEvent is the pre-insert payload of one rule firing in one monitoring run.
type AlertEvent struct {
	ID           uuid.UUID      `json:"id"`
	AlertRuleID  uuid.UUID      `json:"alert_rule_id"`
	BrandID      uuid.UUID      `json:"brand_id"`
	Type         AlertRuleType  `json:"type"`
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	Data         map[string]any `json:"data"`
	ChannelsSent []string       `json:"channels_sent"`
	IsRead       bool           `json:"is_read"`
	CreatedAt    time.Time      `json:"created_at"`
}

// MarkSent appends channels to ChannelsSent, skipping duplicates.
// Channels are never removed once recorded.
func (e *AlertEvent) MarkSent(channels ...string) {
	for _, ch := range channels {
		seen := false
		for _, existing := range e.ChannelsSent {
			if existing == ch {
				seen = true
				break
			}
		}
		if !seen {
			e.ChannelsSent = append(e.ChannelsSent, ch)
		}
	}
}
