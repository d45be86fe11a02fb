package notify

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/careerforge/console/internal/contracts"
	"github.com/careerforge/console/pkg/httputil"
	"github.com/careerforge/console/pkg/logger"
)

// EventWinnerDeclared is the webhook event name
const EventWinnerDeclared = "abtest.winner_declared"

// WinnerDeclared is the JSON body posted when a test gets a winner
type WinnerDeclared struct {
	Event           string            `json:"event"`
	EvaluationID    string            `json:"evaluation_id"`
	TestName        string            `json:"test_name"`
	WinnerID        string            `json:"winner_id"`
	RunnerUpID      string            `json:"runner_up_id"`
	ZScore          float64           `json:"z_score"`
	PValue          float64           `json:"p_value"`
	Deactivated     []string          `json:"deactivated"`
	SkippedOverride []string          `json:"skipped_override"`
	Trigger         contracts.Trigger `json:"trigger"`
	EvaluatedAt     time.Time         `json:"evaluated_at"`
	Message         string            `json:"message"`
}

// NewWinnerDeclared builds the payload for a winner_selected record
func NewWinnerDeclared(record *contracts.EvaluationRecord) WinnerDeclared {
	p := WinnerDeclared{
		Event:           EventWinnerDeclared,
		EvaluationID:    record.ID,
		TestName:        record.TestName,
		WinnerID:        record.WinnerID,
		RunnerUpID:      record.RunnerUpID,
		Deactivated:     record.Deactivated,
		SkippedOverride: record.SkippedOverride,
		Trigger:         record.Trigger,
		EvaluatedAt:     record.EvaluatedAt,
		Message:         fmt.Sprintf("%s: %s", record.TestName, record.Status()),
	}
	if record.Verdict != nil {
		p.ZScore = record.Verdict.ZScore
		p.PValue = record.Verdict.PValue
	}
	return p
}

// WebhookNotifier posts winner announcements to an external endpoint
type WebhookNotifier struct {
	client *httputil.Client
	url    string
	logger *logger.Logger
}

// NewWebhookNotifier creates a webhook notifier; an empty url disables it
func NewWebhookNotifier(client *httputil.Client, url string, log *logger.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		client: client,
		url:    url,
		logger: log.Component("webhook"),
	}
}

// Enabled reports whether a target URL is configured
func (w *WebhookNotifier) Enabled() bool {
	return w.url != ""
}

// Notify posts only winner_selected records
func (w *WebhookNotifier) Notify(ctx context.Context, record *contracts.EvaluationRecord) error {
	if !w.Enabled() || record.Reason != contracts.ReasonWinnerSelected || record.DryRun {
		return nil
	}

	resp, err := w.client.PostJSON(ctx, w.url, NewWinnerDeclared(record))
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	w.logger.WithFields(map[string]interface{}{
		"test_name": record.TestName,
		"winner_id": record.WinnerID,
	}).Info("Winner webhook delivered")

	return nil
}
