package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ekaya-inc/visibility-engine/pkg/apperrors"
	"github.com/ekaya-inc/visibility-engine/pkg/logging"
	"github.com/ekaya-inc/visibility-engine/pkg/models"
	"github.com/ekaya-inc/visibility-engine/pkg/retry"
)

// EmailMessage is one transactional email.
type EmailMessage struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// EmailSender delivers transactional email.
type EmailSender interface {
	IsConfigured() bool
	Send(ctx context.Context, msg EmailMessage) error
}

// ResendConfig configures ResendClient.
type ResendConfig struct {
	APIKey     string
	BaseURL    string // e.g. https://api.resend.com
	From       string
	Timeout    time.Duration
	Retry      *retry.Config // nil uses retry.DefaultConfig
	HTTPClient *http.Client  // optional
}

// ResendClient sends email through the Resend HTTP API:
// POST {base}/emails {from, to, subject, html} with bearer auth.
type ResendClient struct {
	cfg        ResendConfig
	httpClient *http.Client
}

func NewResendClient(cfg ResendConfig) *ResendClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &ResendClient{cfg: cfg, httpClient: httpClient}
}

var _ EmailSender = (*ResendClient)(nil)

// IsConfigured reports whether an API key is present.
func (c *ResendClient) IsConfigured() bool {
	return c.cfg.APIKey != "" && c.cfg.BaseURL != ""
}

// Send posts the message, retrying 429 and 5xx responses with backoff.
// An empty From is filled from the client configuration.
func (c *ResendClient) Send(ctx context.Context, msg EmailMessage) error {
	if !c.IsConfigured() {
		return apperrors.ErrEmailNotConfigured
	}
	if msg.From == "" {
		msg.From = c.cfg.From
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	return retry.DoIfRetryable(ctx, c.cfg.Retry, func() error {
		return c.post(ctx, body)
	})
}

func (c *ResendClient) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &emailStatusError{status: resp.StatusCode, detail: logging.Snippet(string(detail))}
	}
	return nil
}

// emailStatusError is a non-2xx reply from the email provider. Only the
// status code decides retryability; the body is provider text.
type emailStatusError struct {
	status int
	detail string
}

func (e *emailStatusError) Error() string {
	return fmt.Sprintf("%s: email provider returned %d: %s", apperrors.ErrDispatchStatus, e.status, e.detail)
}

func (e *emailStatusError) Unwrap() error { return apperrors.ErrDispatchStatus }

func (e *emailStatusError) IsRetryable() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

var _ retry.RetryableError = (*emailStatusError)(nil)

var alertEmailTemplate = template.Must(template.New("alert-email").Parse(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:24px;background:#f4f4f5;font-family:-apple-system,Segoe UI,Helvetica,Arial,sans-serif;">
  <table width="100%" cellpadding="0" cellspacing="0" style="max-width:560px;margin:0 auto;background:#ffffff;border-radius:8px;overflow:hidden;">
    <tr><td style="background:{{.Color}};padding:16px 24px;color:#ffffff;font-size:14px;font-weight:600;">{{.BrandName}} &middot; {{.TypeLabel}}</td></tr>
    <tr><td style="padding:24px;">
      <h1 style="margin:0 0 12px;font-size:20px;color:#18181b;">{{.Title}}</h1>
      <p style="margin:0 0 24px;font-size:15px;line-height:1.5;color:#3f3f46;">{{.Message}}</p>
      <a href="{{.DashboardLink}}" style="display:inline-block;padding:10px 18px;background:{{.Color}};color:#ffffff;text-decoration:none;border-radius:6px;font-size:14px;">View alert</a>
    </td></tr>
  </table>
</body>
</html>`))

type alertEmailData struct {
	BrandName     string
	Color         template.CSS
	TypeLabel     string
	Title         string
	Message       string
	DashboardLink string
}

// renderAlertEmail builds the subject and HTML body for an alert email.
func renderAlertEmail(event *models.AlertEvent, brand *models.Brand, dashboardLink string) (string, string, error) {
	brandName := "Your brand"
	if brand != nil && brand.Name != "" {
		brandName = brand.Name
	}

	data := alertEmailData{
		BrandName:     brandName,
		Color:         template.CSS(safeColor(brand.EffectiveColor())),
		TypeLabel:     strings.ReplaceAll(string(event.Type), "_", " "),
		Title:         event.Title,
		Message:       event.Message,
		DashboardLink: dashboardLink,
	}

	var buf bytes.Buffer
	if err := alertEmailTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render alert email: %w", err)
	}
	return fmt.Sprintf("[%s] %s", brandName, event.Title), buf.String(), nil
}

// safeColor accepts #rgb / #rrggbb colors and falls back to the default otherwise.
func safeColor(c string) string {
	if (len(c) != 4 && len(c) != 7) || c[0] != '#' {
		return models.DefaultBrandColor
	}
	for _, r := range c[1:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return models.DefaultBrandColor
		}
	}
	return c
}
