// Package remote implements a diagnosis.Adapter for any external analysis
// provider that speaks the normalized verdict JSON over authenticated HTTPS.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/verdict/internal/backend"
	"github.com/linnemanlabs/verdict/internal/diagnosis"
	"github.com/linnemanlabs/verdict/internal/incident"
)

const maxResponseBytes = 256 * 1024

// Adapter calls one external analysis provider endpoint.
type Adapter struct {
	name       string
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     log.Logger
}

// New creates an adapter for the provider at endpoint. The per-request
// deadline comes from the caller's context; the client timeout is only a
// backstop against a missing deadline.
func New(name, endpoint, apiKey string, logger log.Logger) *Adapter {
	if logger == nil {
		logger = log.Nop()
	}
	return &Adapter{
		name:     name,
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Name implements diagnosis.Adapter.
func (a *Adapter) Name() string { return a.name }

// request is the incident payload sent to the provider.
type request struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	SeverityHint    string   `json:"severity_hint,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	AffectedSystems []string `json:"affected_systems,omitempty"`
}

// Analyze implements diagnosis.Adapter. It never returns nil and never
// panics: every transport, auth, or payload fault comes back as a failed
// result with a classified error.
func (a *Adapter) Analyze(ctx context.Context, inc *incident.Context) *diagnosis.AnalysisResult {
	start := time.Now()

	body, err := json.Marshal(request{
		Title:           inc.Title,
		Description:     inc.Description,
		SeverityHint:    string(inc.SeverityHint),
		Tags:            inc.Tags,
		AffectedSystems: inc.AffectedSystems,
	})
	if err != nil {
		return diagnosis.Failed(a.name, diagnosis.ErrClassMalformed, time.Since(start))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return diagnosis.Failed(a.name, diagnosis.ErrClassTransport, time.Since(start))
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(req) //nolint:gosec // G704: endpoint is from trusted config, not user input
	if err != nil {
		return diagnosis.Failed(a.name, classifyTransportErr(ctx, err), time.Since(start))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return diagnosis.Failed(a.name, classifyTransportErr(ctx, err), time.Since(start))
	}

	latency := time.Since(start)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return diagnosis.Failed(a.name, diagnosis.ErrClassUnauthorized, latency)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		a.logger.Warn(ctx, "provider returned non-2xx",
			"provider", a.name,
			"status", resp.StatusCode,
		)
		return diagnosis.Failed(a.name, diagnosis.ErrClassTransport, latency)
	}

	res, err := backend.Parse(a.name, respBody, latency)
	if err != nil {
		a.logger.Warn(ctx, "provider payload rejected", "provider", a.name, "error", err.Error())
		return diagnosis.Failed(a.name, diagnosis.ErrClassMalformed, latency)
	}
	return res
}

// classifyTransportErr distinguishes deadline exhaustion from other
// transport failures.
func classifyTransportErr(ctx context.Context, err error) diagnosis.ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return diagnosis.ErrClassTimeout
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return diagnosis.ErrClassTimeout
	}
	return diagnosis.ErrClassTransport
}

// String aids debugging in logs.
func (a *Adapter) String() string {
	return fmt.Sprintf("remote adapter %s -> %s", a.name, a.endpoint)
}
