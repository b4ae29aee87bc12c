// Package vision reads percentile tables and dot plots out of chart-only
// PDFs by sending the document to a vision model. Calls are serialized
// behind a shared rate limiter and bounded-retried; the extractor never
// returns an error for a single bad document, it returns a record that
// says what went wrong.
package vision

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/fedrates-cli/internal/model"
	"github.com/sells-group/fedrates-cli/internal/resilience"
	"github.com/sells-group/fedrates-cli/internal/survey"
	"github.com/sells-group/fedrates-cli/pkg/anthropic"
)

const (
	defaultModel        = "claude-sonnet-4-5-20250929"
	defaultCallInterval = 3 * time.Second
	maxResponseTokens   = 1024

	// Percentile values outside this band are chart-reading mistakes.
	sanityMin = 0.0
	sanityMax = 10.0
)

// Options configures the vision extractor.
type Options struct {
	Model        string
	CallInterval time.Duration
	Retry        resilience.RetryConfig
}

// Extractor submits survey PDFs to a vision model.
type Extractor struct {
	client  anthropic.Client
	model   string
	limiter *rate.Limiter
	retry   resilience.RetryConfig

	// Month keys (YYYY-MM) already covered by spreadsheet extraction.
	// Documents for these months are skipped to save model calls.
	covered map[string]bool
}

// New returns a vision extractor with the given options. Zero option
// fields get defaults: one call per three seconds and three attempts.
func New(client anthropic.Client, opts Options) *Extractor {
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.CallInterval <= 0 {
		opts.CallInterval = defaultCallInterval
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	return &Extractor{
		client:  client,
		model:   opts.Model,
		limiter: rate.NewLimiter(rate.Every(opts.CallInterval), 1),
		retry:   opts.Retry,
	}
}

// SetCoveredDates installs the month keys for which spreadsheet data
// already exists.
func (e *Extractor) SetCoveredDates(covered map[string]bool) {
	e.covered = covered
}

// Skip reports whether the document's month already has spreadsheet data.
func (e *Extractor) Skip(doc model.SourceDocument) bool {
	if doc.SurveyDate.IsZero() || len(e.covered) == 0 {
		return false
	}
	return e.covered[doc.SurveyDate.Format("2006-01")]
}

// ExtractPercentiles asks the model for the longer-run percentile table
// of the document.
func (e *Extractor) ExtractPercentiles(ctx context.Context, doc model.SourceDocument) model.PercentileRecord {
	rec := model.PercentileRecord{
		SurveyDate: doc.SurveyDate,
		Panel:      panelFor(doc),
		Concept:    model.ConceptFFLongerRun,
		Source:     model.SourceVision,
		FileURL:    doc.URL,
		LocalPath:  doc.LocalPath,
	}

	raw, err := e.call(ctx, doc, percentilePrompt)
	if err != nil {
		rec.Notes = classifyFailure(err)
		return rec
	}

	var reply percentileReply
	if err := decodeReply(raw, &reply); err != nil {
		zap.L().Warn("vision: malformed percentile reply",
			zap.String("path", doc.LocalPath),
			zap.Error(err),
		)
		rec.Notes = "malformed_model_reply"
		return rec
	}

	if !reply.Found {
		rec.Notes = "question_not_present"
		if reply.Reason != "" {
			rec.Notes += "; " + reply.Reason
		}
		return rec
	}

	rec.Pctl25 = boundRate(reply.Pctl25)
	rec.Pctl50 = boundRate(reply.Pctl50)
	rec.Pctl75 = boundRate(reply.Pctl75)
	rec.PDFPage = reply.Page

	if rec.SurveyDate.IsZero() && reply.SurveyYear > 0 && reply.SurveyMonth >= 1 && reply.SurveyMonth <= 12 {
		rec.SurveyDate = time.Date(reply.SurveyYear, time.Month(reply.SurveyMonth), 1, 0, 0, 0, 0, time.UTC)
	}

	if !rec.HasData() {
		rec.Notes = "values_out_of_range"
	}
	return rec
}

// ExtractDotCounts asks the model to count the longer-run dots in a dot
// plot document. A nil DotCount means nothing usable came back; notes
// explain why.
func (e *Extractor) ExtractDotCounts(ctx context.Context, doc model.SourceDocument) (*model.DotCount, string) {
	raw, err := e.call(ctx, doc, dotPlotPrompt)
	if err != nil {
		return nil, classifyFailure(err)
	}

	var reply dotReply
	if err := decodeReply(raw, &reply); err != nil {
		zap.L().Warn("vision: malformed dot plot reply",
			zap.String("path", doc.LocalPath),
			zap.Error(err),
		)
		return nil, "malformed_model_reply"
	}

	if !reply.Found {
		notes := "dot_plot_not_found"
		if reply.Reason != "" {
			notes += "; " + reply.Reason
		}
		return nil, notes
	}

	dc := &model.DotCount{
		Horizon:           model.HorizonLongerRun,
		Counts:            make(map[float64]int),
		TotalParticipants: reply.TotalParticipants,
		Page:              reply.Page,
	}

	if t, ok := survey.ParseSurveyLabel(reply.MeetingDate); ok {
		dc.MeetingDate = t
	} else if t, err := time.Parse("2006-01-02", reply.MeetingDate); err == nil {
		dc.MeetingDate = survey.MonthStart(t)
	} else {
		dc.MeetingDate = doc.SurveyDate
	}

	for level, n := range reply.LongerRunDots {
		lvl := survey.NormalizeRate(level)
		if lvl == nil || *lvl < sanityMin || *lvl > sanityMax || n <= 0 {
			continue
		}
		dc.Counts[*lvl] += n
	}

	if len(dc.Counts) == 0 {
		return nil, "no_longer_run_dots"
	}
	return dc, ""
}

// call sends one rate-limited, retried request carrying the PDF bytes.
func (e *Extractor) call(ctx context.Context, doc model.SourceDocument, prompt string) (string, error) {
	pdf, err := os.ReadFile(doc.LocalPath)
	if err != nil {
		return "", fmt.Errorf("vision: read pdf: %w", err)
	}

	return resilience.DoVal(ctx, e.withRetryLogging(), func(ctx context.Context) (string, error) {
		if err := e.limiter.Wait(ctx); err != nil {
			return "", err
		}

		resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     e.model,
			MaxTokens: maxResponseTokens,
			System:    anthropic.BuildCachedSystemBlocks(systemPrompt),
			Messages: []anthropic.Message{
				{Role: "user", Content: prompt, Document: pdf},
			},
		})
		if err != nil {
			return "", err
		}

		resp.Usage.LogCost(e.model, "vision_extraction")
		return resp.Text(), nil
	})
}

func (e *Extractor) withRetryLogging() resilience.RetryConfig {
	cfg := e.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("anthropic", "vision_extraction")
	}
	return cfg
}

// boundRate rejects values outside the plausible policy-rate band.
func boundRate(v *float64) *float64 {
	if v == nil || *v < sanityMin || *v > sanityMax {
		return nil
	}
	return v
}

func classifyFailure(err error) string {
	if resilience.IsTransient(err) {
		return fmt.Sprintf("model_call_failed_transient: %v", err)
	}
	return fmt.Sprintf("model_call_failed: %v", err)
}

func panelFor(doc model.SourceDocument) model.Panel {
	if doc.SurveyType != "" {
		return doc.SurveyType
	}
	return survey.ClassifyPanel("", doc.SurveyDate)
}
