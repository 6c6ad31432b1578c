package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/visibility-engine/pkg/apperrors"
	"github.com/ekaya-inc/visibility-engine/pkg/logging"
	"github.com/ekaya-inc/visibility-engine/pkg/metrics"
	"github.com/ekaya-inc/visibility-engine/pkg/models"
)

// DefaultWebhookTimeout bounds one webhook delivery.
const DefaultWebhookTimeout = 5 * time.Second

// WebhookEventHeader carries the alert type on webhook deliveries.
const WebhookEventHeader = "X-Visibility-Event"

// AlertDispatcher delivers fired alerts to the channels a rule lists.
type AlertDispatcher interface {
	// Dispatch returns the channels that accepted the event. Delivery
	// failures are logged and reflected only by omission.
	Dispatch(ctx context.Context, event *models.AlertEvent, rule *models.AlertRule, brand *models.Brand) []string
}

// AlertDispatcherConfig configures NewAlertDispatcher.
type AlertDispatcherConfig struct {
	DashboardURL   string
	WebhookTimeout time.Duration
	HTTPClient     *http.Client // optional; used for webhooks
}

type alertDispatcher struct {
	cfg        AlertDispatcherConfig
	email      EmailSender
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewAlertDispatcher(cfg AlertDispatcherConfig, email EmailSender, m *metrics.Metrics, logger *zap.Logger) AlertDispatcher {
	if cfg.WebhookTimeout <= 0 {
		cfg.WebhookTimeout = DefaultWebhookTimeout
	}
	cfg.DashboardURL = strings.TrimSuffix(cfg.DashboardURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &alertDispatcher{
		cfg:        cfg,
		email:      email,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger.Named("alert-dispatcher"),
		now:        time.Now,
	}
}

var _ AlertDispatcher = (*alertDispatcher)(nil)

func (d *alertDispatcher) Dispatch(ctx context.Context, event *models.AlertEvent, rule *models.AlertRule, brand *models.Brand) []string {
	sent := []string{}
	if event == nil || rule == nil {
		return sent
	}

	seen := make(map[models.AlertChannel]bool, len(rule.Channels))
	for _, ch := range rule.Channels {
		if seen[ch] {
			continue
		}
		seen[ch] = true

		var attempted bool
		var err error
		switch ch {
		case models.ChannelEmail:
			attempted, err = d.guard(ch, func() (bool, error) { return d.sendEmail(ctx, event, rule, brand) })
		case models.ChannelWebhook:
			attempted, err = d.guard(ch, func() (bool, error) { return d.sendWebhook(ctx, event, rule) })
		default:
			d.logger.Warn("Unknown alert channel",
				zap.String("channel", string(ch)),
				zap.String("rule_id", rule.ID.String()))
			continue
		}

		if !attempted {
			d.metrics.IncAlertDispatch(string(ch), metrics.OutcomeSkipped)
			continue
		}
		if err != nil {
			d.metrics.IncAlertDispatch(string(ch), metrics.OutcomeFailure)
			d.logger.Error("Alert delivery failed",
				zap.String("channel", string(ch)),
				zap.String("rule_id", rule.ID.String()),
				zap.String("alert_type", string(event.Type)),
				zap.String("error", logging.SanitizeError(err)))
			continue
		}

		d.metrics.IncAlertDispatch(string(ch), metrics.OutcomeSuccess)
		sent = append(sent, string(ch))
	}
	return sent
}

// guard converts a panic inside a channel into a failed delivery.
func (d *alertDispatcher) guard(ch models.AlertChannel, fn func() (bool, error)) (attempted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			attempted = true
			err = fmt.Errorf("%s channel panicked: %v", ch, r)
		}
	}()
	return fn()
}

func (d *alertDispatcher) sendEmail(ctx context.Context, event *models.AlertEvent, rule *models.AlertRule, brand *models.Brand) (bool, error) {
	if rule.Email == "" || d.email == nil || !d.email.IsConfigured() {
		return false, nil
	}

	subject, html, err := renderAlertEmail(event, brand, d.dashboardLink(event, brand))
	if err != nil {
		return true, err
	}
	return true, d.email.Send(ctx, EmailMessage{
		To:      []string{rule.Email},
		Subject: subject,
		HTML:    html,
	})
}

func (d *alertDispatcher) dashboardLink(event *models.AlertEvent, brand *models.Brand) string {
	brandID := event.BrandID
	if brand != nil {
		brandID = brand.ID
	}
	return fmt.Sprintf("%s/brands/%s/alerts", d.cfg.DashboardURL, brandID)
}

type webhookPayload struct {
	Event     *models.AlertEvent `json:"event"`
	Timestamp string             `json:"timestamp"`
}

func (d *alertDispatcher) sendWebhook(ctx context.Context, event *models.AlertEvent, rule *models.AlertRule) (bool, error) {
	if rule.WebhookURL == "" {
		return false, nil
	}

	body, err := json.Marshal(webhookPayload{
		Event:     event,
		Timestamp: d.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return true, fmt.Errorf("marshal webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.WebhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rule.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return true, fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(WebhookEventHeader, string(event.Type))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return true, fmt.Errorf("%w: webhook returned %d", apperrors.ErrDispatchStatus, resp.StatusCode)
	}
	return true, nil
}
