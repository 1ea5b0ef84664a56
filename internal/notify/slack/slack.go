// Package slack sends diagnosis notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/verdict/internal/diagnosis"
	"github.com/linnemanlabs/verdict/internal/incident"
)

const (
	maxRootCauseLen = 3000
	httpTimeout     = 10 * time.Second
)

// Notifier sends diagnosis records to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Notify posts a diagnosis record to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Notify(ctx context.Context, rec *diagnosis.Record) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(rec)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(rec *diagnosis.Record) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(rec),
			{"type": "divider"},
			fieldsBlock(rec),
			{"type": "divider"},
			verdictBlock(rec),
			{"type": "divider"},
			contextBlock(rec),
		},
	}
}

func headerBlock(rec *diagnosis.Record) map[string]any {
	res := rec.Outcome.Result
	text := fmt.Sprintf("%s Diagnosis: %s", severityEmoji(res.Severity), rec.Title)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(rec *diagnosis.Record) map[string]any {
	out := rec.Outcome
	res := out.Result

	sla := "met"
	if !out.SLAMet {
		sla = "missed"
	}

	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Severity:* %s", res.Severity),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Confidence:* %.0f%%", res.Confidence*100),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Source:* %s", out.Provenance),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Elapsed:* %dms (SLA %s)", out.Elapsed.Milliseconds(), sla),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Est. resolution:* %dm", res.EstimatedMinutes),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Auto-resolvable:* %t", res.AutoResolvable),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func verdictBlock(rec *diagnosis.Record) map[string]any {
	res := rec.Outcome.Result

	var sb strings.Builder
	fmt.Fprintf(&sb, "*Root cause*\n\n%s", truncate(res.RootCause, maxRootCauseLen))
	if res.BusinessImpact != "" {
		fmt.Fprintf(&sb, "\n\n*Impact*\n\n%s", res.BusinessImpact)
	}
	if len(res.Actions) > 0 {
		sb.WriteString("\n\n*Recommended actions*")
		for _, a := range res.Actions {
			fmt.Fprintf(&sb, "\n• %s", a)
		}
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": sb.String(),
		},
	}
}

func contextBlock(rec *diagnosis.Record) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("verdict • diagnosis %s • %s", rec.ID, rec.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func severityEmoji(severity incident.Severity) string {
	switch severity {
	case incident.SeverityCritical:
		return "\U0001f534" // red circle
	case incident.SeverityHigh:
		return "\U0001f7e0" // orange circle
	case incident.SeverityMedium:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
