package pipeline

import (
	"context"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LegalLens/internal/intelligence/advisory"
	"github.com/turtacn/LegalLens/internal/intelligence/preprocess"
	"github.com/turtacn/LegalLens/internal/intelligence/retrieval"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

const (
	advisoryStages = 6
	advisoryType   = "advisory"
	unknownSource  = "unknown"
	advisoryTopK   = retrieval.DefaultTopK
)

// AdvisoryRequest is the input to a pre-litigation advisory.
type AdvisoryRequest struct {
	CaseTitle  string
	Objective  string
	Background string
	Files      []FileInput
}

// DocumentsOutput is the documents stage record. Only files that yielded
// text are listed.
type DocumentsOutput struct {
	FilesProcessed int      `json:"files_processed"`
	Files          []string `json:"files"`
}

// RetrievalOutput is the rag_retrieval stage record.
type RetrievalOutput struct {
	Domain             string   `json:"domain"`
	DocumentsRetrieved int      `json:"documents_retrieved"`
	Sources            []string `json:"sources"`
}

// KnowledgeRetriever answers retrieval queries.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, domain, query string, topK int) []legal.RetrievedChunk
}

// AdvisoryDeps are the collaborators of the advisory orchestrator.
// Publisher and Metrics are optional.
type AdvisoryDeps struct {
	Intake     DocumentExtractor
	Normalizer Normalizer
	Classifier advisory.Classifier
	Retriever  KnowledgeRetriever
	Reasoner   Reasoner
	Renderer   ReportRenderer
	Publisher  EventPublisher
	EventTopic string
	Metrics    *prometheus.AppMetrics
	Logger     logging.Logger
}

// AdvisoryOrchestrator runs documents, preprocess, classification,
// rag_retrieval, analysis and report.
type AdvisoryOrchestrator struct {
	deps AdvisoryDeps
	runner
}

func NewAdvisoryOrchestrator(deps AdvisoryDeps) *AdvisoryOrchestrator {
	if deps.Intake == nil || deps.Normalizer == nil || deps.Classifier == nil || deps.Retriever == nil ||
		deps.Reasoner == nil || deps.Renderer == nil {
		panic("nil dependency injected into AdvisoryOrchestrator")
	}
	return &AdvisoryOrchestrator{
		deps:   deps,
		runner: newRunner(AdvisoryPipeline, deps.Publisher, deps.EventTopic, deps.Metrics, deps.Logger),
	}
}

// Analyze runs the advisory pipeline. Failures keep case_type "advisory".
func (o *AdvisoryOrchestrator) Analyze(ctx context.Context, req AdvisoryRequest) *legal.PipelineResult {
	started := o.now()
	res := legal.NewPipelineResult(defaultTitle(req.CaseTitle, "ADVISORY", started), advisoryType, started)
	o.logger.Info("starting advisory pipeline", logging.String("case_title", res.CaseTitle))

	var (
		docsText       []string
		docs           DocumentsOutput
		cleaned        string
		classification legal.AdvisoryClassification
		refs           []legal.RetrievedChunk
		analysis       legal.Analysis
		artifact       *legal.ReportArtifact
	)
	id := caseID(res.CaseTitle)
	facts := func() legal.AdvisoryFacts {
		return legal.AdvisoryFacts{
			CaseID:         id,
			CaseTitle:      res.CaseTitle,
			Objective:      req.Objective,
			Background:     req.Background,
			Classification: classification,
			References:     refs,
		}
	}

	steps := []struct {
		name legal.Stage
		fn   func() (interface{}, error)
	}{
		{legal.StageDocuments, func() (interface{}, error) {
			docs = DocumentsOutput{Files: []string{}}
			for _, f := range req.Files {
				doc := o.deps.Intake.Extract(ctx, f.Filename, f.Data)
				if doc.Text == "" {
					continue
				}
				docsText = append(docsText, doc.Text)
				docs.Files = append(docs.Files, f.Filename)
			}
			docs.FilesProcessed = len(docs.Files)
			return docs, nil
		}},
		{legal.StagePreprocess, func() (interface{}, error) {
			text := joinTexts(append([]string{req.Objective, req.Background}, docsText...)...)
			if text == "" {
				o.logger.Warn("no objective, background or document text to analyze")
			}
			norm := o.deps.Normalizer.Process(ctx, text, preprocess.Options{Translate: false, Clean: true})
			cleaned = norm.CleanedText
			if cleaned == "" {
				cleaned = text
			}
			return norm, nil
		}},
		{legal.StageClassification, func() (interface{}, error) {
			classification = o.deps.Classifier.Classify(ctx, cleaned)
			o.logger.Info("advisory domain", logging.String("domain", classification.Domain))
			return classification, nil
		}},
		{legal.StageRetrieval, func() (interface{}, error) {
			refs = o.deps.Retriever.Retrieve(ctx, classification.Domain, cleaned, advisoryTopK)
			out := RetrievalOutput{Domain: classification.Domain, DocumentsRetrieved: len(refs), Sources: make([]string, 0, len(refs))}
			for _, r := range refs {
				src := r.Source()
				if src == "" {
					src = unknownSource
				}
				out.Sources = append(out.Sources, src)
			}
			return out, nil
		}},
		{legal.StageAnalysis, func() (interface{}, error) {
			analysis = o.deps.Reasoner.AnalyzeAdvisory(ctx, facts())
			return analysis, nil
		}},
		{legal.StageReport, func() (interface{}, error) {
			var err error
			artifact, err = o.deps.Renderer.RenderAdvisory(ctx, facts(), analysis, docs.Files)
			if err != nil {
				return nil, err
			}
			return artifact, nil
		}},
	}

	for i, s := range steps {
		if _, err := o.stage(ctx, res, s.name, i+1, advisoryStages, s.fn); err != nil {
			return o.fail(res, err)
		}
	}

	res.CaseID = id
	res.PDFPath = artifact.PDFPath
	res.Summary = legal.AdvisorySummary{
		Domain:             classification.Domain,
		Confidence:         classification.Confidence,
		DocumentsProcessed: docs.FilesProcessed,
		KnowledgeSources:   len(refs),
	}
	return o.complete(ctx, res, classification.Domain, reportObjectKey(artifact))
}
