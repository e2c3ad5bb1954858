package reasoning

import (
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

// Provider writes the analysis narrative for the two pipelines. Providers
// never fail: degraded results carry Method and Error instead.
type Provider interface {
	AnalyzeCase(ctx context.Context, facts legal.CaseFacts) legal.Analysis
	AnalyzeAdvisory(ctx context.Context, facts legal.AdvisoryFacts) legal.Analysis
}

// GenerativeProvider prompts a Generator and falls back to the templates.
// A nil generator yields template output with method "no_api".
type GenerativeProvider struct {
	generator Generator
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
	now       func() time.Time
}

func NewGenerativeProvider(gen Generator, metrics *prometheus.AppMetrics, log logging.Logger) *GenerativeProvider {
	if metrics == nil {
		metrics = prometheus.NewNoopAppMetrics()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &GenerativeProvider{
		generator: gen,
		metrics:   metrics,
		logger:    log.Named("reasoning"),
		now:       time.Now,
	}
}

// NewTemplateProvider returns a provider that only renders templates.
func NewTemplateProvider(log logging.Logger) *GenerativeProvider {
	return NewGenerativeProvider(nil, nil, log)
}

func (p *GenerativeProvider) AnalyzeCase(ctx context.Context, facts legal.CaseFacts) legal.Analysis {
	data := newCaseData(facts)
	out := legal.Analysis{SectionsAnalyzed: len(data.Sections)}

	text, err := p.run(ctx, "case", casePrompt, caseTemplate, data, &out)
	if err != nil {
		// Only reachable on a template bug.
		out.Analysis = fmt.Sprintf("Error during analysis: %v", err)
		out.Method = legal.AnalysisMethodTemplate
		out.Error = err.Error()
		return out
	}
	out.Analysis = text
	return out
}

func (p *GenerativeProvider) AnalyzeAdvisory(ctx context.Context, facts legal.AdvisoryFacts) legal.Analysis {
	data := newAdvisoryData(facts)
	out := legal.Analysis{}

	text, err := p.run(ctx, "advisory", advisoryPrompt, advisoryTemplate, data, &out)
	if err != nil {
		out.Analysis = fmt.Sprintf("Error during analysis: %v", err)
		out.Method = legal.AnalysisMethodTemplate
		out.Error = err.Error()
		return out
	}
	out.Analysis = text
	if out.Method == legal.AnalysisMethodLLM {
		out.ReferencesUsed = min(len(facts.References), maxPromptReferences)
	}
	return out
}

// run fills Method, Model, GeneratedAt and Error on out and returns the
// narrative.
func (p *GenerativeProvider) run(ctx context.Context, op string, prompt, fallback *template.Template, data interface{}, out *legal.Analysis) (string, error) {
	out.GeneratedAt = p.now()

	if p.generator == nil {
		out.Method = legal.AnalysisMethodNoAPI
		out.Error = "reasoning backend not configured"
		return render(fallback, data)
	}

	text, err := p.generate(ctx, op, prompt, data)
	if err != nil {
		p.logger.Warn("generation failed, using template",
			logging.String("operation", op), logging.Err(err))
		out.Method = legal.AnalysisMethodTemplate
		out.Error = err.Error()
		return render(fallback, data)
	}
	out.Method = legal.AnalysisMethodLLM
	out.Model = p.generator.Name()
	return text, nil
}

func (p *GenerativeProvider) generate(ctx context.Context, op string, prompt *template.Template, data interface{}) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrCodeLLMFailed, "generator panicked: %v", r)
		}
	}()

	body, err := render(prompt, data)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to render prompt")
	}
	start := time.Now()
	text, err = p.generator.Generate(ctx, body)
	p.metrics.RecordLLMRequest(p.generator.Name(), op, err == nil, time.Since(start))
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", errors.New(errors.ErrCodeLLMEmpty, "generator returned no text")
	}
	return text, nil
}
