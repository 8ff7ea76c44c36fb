// Package compose turns a finished wizard record into report text.
package compose

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joelkehle/patrol-report/internal/observability"
	"github.com/joelkehle/patrol-report/internal/publish"
	"github.com/joelkehle/patrol-report/internal/report"
	"github.com/joelkehle/patrol-report/internal/statestore"
)

// FallbackMessage is shown in place of a report when generation fails.
const FallbackMessage = "Failed to generate report. Please check API key."

var (
	ErrGeneration  = errors.New("report generation failed")
	ErrEmptyReport = errors.New("report generator returned no text")
)

type Composer struct {
	gen       TextGenerator
	state     statestore.Store
	publisher publish.Publisher
	metrics   *observability.Metrics
	clock     clockwork.Clock
	tracer    trace.Tracer
}

type Option func(*Composer)

func WithPublisher(p publish.Publisher) Option {
	return func(c *Composer) { c.publisher = p }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(c *Composer) { c.metrics = m }
}

func WithClock(clock clockwork.Clock) Option {
	return func(c *Composer) { c.clock = clock }
}

// NewComposer builds a composer. gen may be nil when no credential is
// configured; every Generate call then fails with ErrMissingCredential.
func NewComposer(gen TextGenerator, state statestore.Store, opts ...Option) *Composer {
	c := &Composer{
		gen:       gen,
		state:     state,
		publisher: publish.NopPublisher{},
		clock:     clockwork.NewRealClock(),
		tracer:    otel.Tracer("github.com/joelkehle/patrol-report/internal/compose"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether a text generator is configured.
func (c *Composer) Available() bool { return c.gen != nil }

// Generate derives the alerts for data, asks the generator for report text
// and, on success, records the report time. data is not modified. Failures
// leave the state store untouched.
func (c *Composer) Generate(ctx context.Context, data report.Data) (report.Generated, error) {
	ctx, span := c.tracer.Start(ctx, "compose.Generate")
	defer span.End()

	alerts := report.DeriveAlerts(data)
	payload := data.Clone()
	payload.SystemAlerts = append([]string{}, alerts...)
	span.SetAttributes(attribute.Int("report.alert_count", len(alerts)))

	if c.gen == nil {
		c.observe("missing_credential")
		span.SetStatus(codes.Error, ErrMissingCredential.Error())
		return report.Generated{}, ErrMissingCredential
	}

	now := c.clock.Now()
	prompt, err := BuildPrompt(payload, now)
	if err != nil {
		c.observe("failure")
		span.RecordError(err)
		span.SetStatus(codes.Error, "build prompt")
		return report.Generated{}, fmt.Errorf("%w: build prompt: %v", ErrGeneration, err)
	}

	started := c.clock.Now()
	text, err := c.gen.Generate(ctx, prompt)
	if c.metrics != nil {
		c.metrics.GenerationDuration.Observe(c.clock.Since(started).Seconds())
	}
	if err != nil {
		c.observe("failure")
		span.RecordError(err)
		span.SetStatus(codes.Error, "generator call")
		return report.Generated{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		c.observe("empty")
		span.SetStatus(codes.Error, ErrEmptyReport.Error())
		return report.Generated{}, ErrEmptyReport
	}

	out := report.Generated{
		ID:          uuid.NewString(),
		Text:        text,
		Alerts:      alerts,
		GeneratedAt: c.clock.Now(),
	}
	span.SetAttributes(attribute.String("report.id", out.ID))
	c.observe("success")
	if c.metrics != nil {
		for _, a := range alerts {
			c.metrics.AlertsRaised.WithLabelValues(a).Inc()
		}
	}

	if c.state != nil {
		if err := statestore.MarkReportGenerated(c.state, out.GeneratedAt); err != nil {
			log.Printf("record report time failed report=%s err=%v", out.ID, err)
		}
	}
	if err := c.publisher.Publish(ctx, publish.NewEvent(payload, out)); err != nil {
		log.Printf("publish report failed report=%s err=%v", out.ID, err)
		if c.metrics != nil {
			c.metrics.PublishErrors.Inc()
		}
	}
	return out, nil
}

func (c *Composer) observe(outcome string) {
	if c.metrics != nil {
		c.metrics.Generations.WithLabelValues(outcome).Inc()
	}
}
