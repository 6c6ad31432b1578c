package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/visibility-engine/pkg/models"
)

// AlertProcessor evaluates a brand's rules against a fresh monitoring result
// and dispatches an event for every rule that fires.
type AlertProcessor interface {
	// Process returns one event per fired rule, with ChannelsSent populated.
	// Fired rules have LastFiredAt stamped; nothing else on a rule changes.
	Process(ctx context.Context, in ProcessInput) []*models.AlertEvent
}

// ProcessInput is one monitoring result plus the rules watching its brand.
type ProcessInput struct {
	Rules          []*models.AlertRule
	Result         *models.MonitoringResult
	PreviousResult *models.MonitoringResult
	Brand          *models.Brand
}

type alertProcessor struct {
	dispatcher AlertDispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func NewAlertProcessor(dispatcher AlertDispatcher, logger *zap.Logger) AlertProcessor {
	return &alertProcessor{
		dispatcher: dispatcher,
		logger:     logger.Named("alert-processor"),
		now:        time.Now,
	}
}

var _ AlertProcessor = (*alertProcessor)(nil)

func (p *alertProcessor) Process(ctx context.Context, in ProcessInput) []*models.AlertEvent {
	events := []*models.AlertEvent{}
	if in.Result == nil {
		return events
	}

	eval := EvaluationInput{Result: in.Result, PreviousResult: in.PreviousResult, Brand: in.Brand}

	// Each rule is independent; a failing channel on one never stops the rest
	for _, rule := range in.Rules {
		if !p.applies(rule, in.Brand) || !ShouldFire(rule, eval) {
			continue
		}

		event := BuildEvent(rule, in.Result, in.Brand)
		event.MarkSent(p.dispatcher.Dispatch(ctx, event, rule, in.Brand)...)

		firedAt := p.now().UTC()
		rule.LastFiredAt = &firedAt
		events = append(events, event)

		p.logger.Info("Alert fired",
			zap.String("rule_id", rule.ID.String()),
			zap.String("alert_type", string(rule.Type)),
			zap.String("engine", string(in.Result.Engine)),
			zap.Strings("channels_sent", event.ChannelsSent))
	}
	return events
}

// applies filters out inactive rules and rules belonging to another brand.
func (p *alertProcessor) applies(rule *models.AlertRule, brand *models.Brand) bool {
	if rule == nil || !rule.IsActive {
		return false
	}
	if brand != nil && rule.BrandID != uuid.Nil && brand.ID != uuid.Nil && rule.BrandID != brand.ID {
		return false
	}
	return true
}
