// Package pipeline runs the case and advisory orchestrations. Stages run in
// order inside one invocation and record their outputs on a PipelineResult;
// the first stage failure discards everything recorded so far.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/LegalLens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LegalLens/internal/intelligence/preprocess"
	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

// Pipeline names used in metrics and events.
const (
	CasePipeline     = "case"
	AdvisoryPipeline = "advisory"
)

// MethodTextInput marks text pasted directly rather than extracted from a
// file.
const MethodTextInput = "text_input"

const titleTimeLayout = "20060102_150405"

// ─────────────────────────────────────────────────────────────────────────────
// Collaborators
// ─────────────────────────────────────────────────────────────────────────────

// DocumentExtractor turns an uploaded file into text.
type DocumentExtractor interface {
	Extract(ctx context.Context, filename string, data []byte) legal.DocumentText
}

// Normalizer cleans and optionally translates text.
type Normalizer interface {
	Process(ctx context.Context, text string, opts preprocess.Options) legal.NormalizedText
}

// SectionMapper maps classified issues to statutory sections.
type SectionMapper interface {
	MapSections(domain, primaryIssue string, secondaryIssues []string) legal.SectionMapping
}

// Reasoner writes the legal analysis.
type Reasoner interface {
	AnalyzeCase(ctx context.Context, facts legal.CaseFacts) legal.Analysis
	AnalyzeAdvisory(ctx context.Context, facts legal.AdvisoryFacts) legal.Analysis
}

// ReportRenderer writes the report files.
type ReportRenderer interface {
	RenderCase(ctx context.Context, facts legal.CaseFacts, analysis legal.Analysis) (*legal.ReportArtifact, error)
	RenderAdvisory(ctx context.Context, facts legal.AdvisoryFacts, analysis legal.Analysis, documentsReviewed []string) (*legal.ReportArtifact, error)
}

// EventPublisher announces completed pipelines. Implemented by the Kafka
// producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, eventType string, key []byte, payload interface{}) error
}

// FileInput is one uploaded file.
type FileInput struct {
	Filename string
	Data     []byte
}

// ─────────────────────────────────────────────────────────────────────────────
// Shared runner
// ─────────────────────────────────────────────────────────────────────────────

// runner carries what both orchestrators share: stage timing, panic
// containment and completion events.
type runner struct {
	pipeline  string
	publisher EventPublisher
	topic     string
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
	now       func() time.Time
}

func newRunner(pipeline string, publisher EventPublisher, topic string, metrics *prometheus.AppMetrics, log logging.Logger) runner {
	if metrics == nil {
		metrics = prometheus.NewNoopAppMetrics()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	if topic == "" {
		topic = kafka.TopicPipelineCompleted
	}
	return runner{
		pipeline:  pipeline,
		publisher: publisher,
		topic:     topic,
		metrics:   metrics,
		logger:    log.Named(pipeline + "-pipeline"),
		now:       time.Now,
	}
}

// stage runs fn as the named stage and records its output. A panic in fn is
// reported as the stage's error.
func (r *runner) stage(ctx context.Context, res *legal.PipelineResult, name legal.Stage, step, total int, fn func() (interface{}, error)) (out interface{}, err error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePipelineStageFailed, "pipeline cancelled").WithDetail(string(name))
	}
	r.logger.Info(fmt.Sprintf("STEP %d/%d: %s", step, total, name), logging.String("case_title", res.CaseTitle))

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Newf(errors.ErrCodePipelineStageFailed, "%s stage panicked: %v", name, rec)
		}
		r.metrics.RecordStage(r.pipeline, string(name), time.Since(start))
		if err == nil {
			res.Record(name, out)
		}
	}()
	return fn()
}

// fail converts res into its error shape.
func (r *runner) fail(res *legal.PipelineResult, err error) *legal.PipelineResult {
	r.logger.Error("pipeline failed", logging.String("case_title", res.CaseTitle), logging.Err(err))
	r.metrics.RecordPipelineRun(r.pipeline, string(legal.StatusError), r.now().Sub(*res.StartedAt))
	return res.Failed(err, r.now())
}

// complete finalizes res and announces it.
func (r *runner) complete(ctx context.Context, res *legal.PipelineResult, domain, reportKey string) *legal.PipelineResult {
	res.Complete(r.now())
	elapsed := res.CompletedAt.Sub(*res.StartedAt)
	r.metrics.RecordPipelineRun(r.pipeline, string(legal.StatusSuccess), elapsed)
	r.logger.Info("pipeline completed",
		logging.String("case_id", res.CaseID),
		logging.String("domain", domain),
		logging.String("pdf_path", res.PDFPath),
		logging.Duration("elapsed", elapsed))

	if r.publisher == nil {
		return res
	}
	payload := kafka.PipelineCompletedPayload{
		CaseID:      res.CaseID,
		CaseTitle:   res.CaseTitle,
		CaseType:    r.pipeline,
		Status:      string(res.Status),
		Domain:      domain,
		PDFPath:     res.PDFPath,
		ReportKey:   reportKey,
		DurationMs:  elapsed.Milliseconds(),
		CompletedAt: res.CompletedAt,
	}
	if err := r.publisher.PublishEvent(ctx, r.topic, kafka.EventPipelineCompleted, []byte(res.CaseID), payload); err != nil {
		r.logger.Warn("failed to publish pipeline event", logging.String("case_id", res.CaseID), logging.Err(err))
	}
	return res
}

// defaultTitle returns title, or prefix_YYYYMMDD_HHMMSS when it is blank.
func defaultTitle(title, prefix string, now time.Time) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return prefix + "_" + now.Format(titleTimeLayout)
}

// caseID derives the directory-safe id from a title: spaces and path
// separators become "_", and an id made only of dots gets a "_" prefix.
func caseID(title string) string {
	id := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\':
			return '_'
		case 0:
			return -1
		}
		return r
	}, title)
	if strings.Trim(id, ".") == "" {
		id = "_" + id
	}
	return id
}

// joinTexts joins the non-empty texts with blank lines.
func joinTexts(texts ...string) string {
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// reportObjectKey returns the last published key, the PDF when one was
// rendered.
func reportObjectKey(art *legal.ReportArtifact) string {
	if art == nil || len(art.ObjectKeys) == 0 {
		return ""
	}
	return art.ObjectKeys[len(art.ObjectKeys)-1]
}
