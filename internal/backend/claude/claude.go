// Package claude implements a diagnosis.Adapter backed by the Anthropic
// Messages API. The model is asked for a strict JSON verdict in the
// normalized payload shape; anything else is a malformed response.
package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/verdict/internal/backend"
	"github.com/linnemanlabs/verdict/internal/diagnosis"
	"github.com/linnemanlabs/verdict/internal/incident"
)

const (
	// AdapterName identifies this adapter in provenance and priority config.
	AdapterName = "claude"

	responseTokens = 1024
)

// Adapter calls the Anthropic API for incident analysis.
type Adapter struct {
	client anthropic.Client
	model  anthropic.Model
	logger log.Logger
}

// New creates a Claude adapter with the given API key and model name.
func New(apiKey, model string, logger log.Logger) *Adapter {
	if logger == nil {
		logger = log.Nop()
	}
	return &Adapter{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
		logger: logger,
	}
}

// Name implements diagnosis.Adapter.
func (a *Adapter) Name() string { return AdapterName }

// Analyze implements diagnosis.Adapter. All API and payload faults are
// absorbed into a failed result with a classified error.
func (a *Adapter) Analyze(ctx context.Context, inc *incident.Context) *diagnosis.AnalysisResult {
	start := time.Now()

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: responseTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(inc))),
		},
	})
	if err != nil {
		class := classify(ctx, err)
		a.logger.Warn(ctx, "claude call failed", "error_class", string(class), "error", err.Error())
		return diagnosis.Failed(AdapterName, class, time.Since(start))
	}

	latency := time.Since(start)

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return diagnosis.Failed(AdapterName, diagnosis.ErrClassMalformed, latency)
	}

	res, err := backend.Parse(AdapterName, []byte(sb.String()), latency)
	if err != nil {
		a.logger.Warn(ctx, "claude verdict rejected", "error", err.Error())
		return diagnosis.Failed(AdapterName, diagnosis.ErrClassMalformed, latency)
	}
	return res
}

// classify maps API errors onto the adapter error taxonomy.
func classify(ctx context.Context, err error) diagnosis.ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return diagnosis.ErrClassTimeout
	}
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 401, 403:
			return diagnosis.ErrClassUnauthorized
		}
	}
	return diagnosis.ErrClassTransport
}

const systemPrompt = `You are an incident diagnosis engine. Given an operational incident, respond with ONLY a JSON object, no prose and no code fences, with exactly these fields:
{"confidence": <0..1>, "severity": "critical"|"high"|"medium"|"low", "root_cause": "<one sentence>", "business_impact": "<one sentence>", "recommended_actions": ["<action>", ...], "auto_resolvable": <bool>, "estimated_minutes": <int>}`

// buildPrompt renders the incident for the model.
func buildPrompt(inc *incident.Context) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Incident: %s\n", inc.Title)
	fmt.Fprintf(&sb, "Description: %s\n", inc.Description)
	if inc.SeverityHint != "" {
		fmt.Fprintf(&sb, "Reported severity: %s\n", inc.SeverityHint)
	}
	if len(inc.Tags) > 0 {
		fmt.Fprintf(&sb, "Tags: %s\n", strings.Join(inc.Tags, ", "))
	}
	if len(inc.AffectedSystems) > 0 {
		fmt.Fprintf(&sb, "Affected systems: %s\n", strings.Join(inc.AffectedSystems, ", "))
	}
	sb.WriteString("\nDiagnose the root cause and respond with the JSON verdict.")
	return sb.String()
}
