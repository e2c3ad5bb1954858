package pipeline

import (
	"context"
	"unicode/utf8"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LegalLens/internal/intelligence/evidence"
	"github.com/turtacn/LegalLens/internal/intelligence/issue"
	"github.com/turtacn/LegalLens/internal/intelligence/preprocess"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

const caseStages = 7

// CaseRequest is the input to a litigation case analysis. Pasted text wins
// over the corresponding file.
type CaseRequest struct {
	CaseTitle     string
	StatementText string
	Statement     *FileInput
	FIRText       string
	FIR           *FileInput
	OtherFiles    []FileInput
	Translate     bool
	Clean         bool
	UseEmbeddings bool
}

// UploadOutput is the upload stage record.
type UploadOutput struct {
	Statement      *legal.DocumentText  `json:"statement,omitempty"`
	FIR            *legal.DocumentText  `json:"fir,omitempty"`
	OtherDocuments []legal.DocumentText `json:"other_documents"`
}

func (u UploadOutput) combinedText() string {
	texts := make([]string, 0, 2+len(u.OtherDocuments))
	if u.Statement != nil {
		texts = append(texts, u.Statement.Text)
	}
	if u.FIR != nil {
		texts = append(texts, u.FIR.Text)
	}
	for _, d := range u.OtherDocuments {
		texts = append(texts, d.Text)
	}
	return joinTexts(texts...)
}

// CaseDeps are the collaborators of the case orchestrator. Publisher and
// Metrics are optional.
type CaseDeps struct {
	Intake     DocumentExtractor
	Normalizer Normalizer
	Classifier issue.Classifier
	Mapper     SectionMapper
	Evidence   evidence.Extractor
	Reasoner   Reasoner
	Renderer   ReportRenderer
	Publisher  EventPublisher
	EventTopic string
	Metrics    *prometheus.AppMetrics
	Logger     logging.Logger
}

// CaseOrchestrator runs upload, preprocess, classification, sections,
// evidence, analysis and report.
type CaseOrchestrator struct {
	deps CaseDeps
	runner
}

func NewCaseOrchestrator(deps CaseDeps) *CaseOrchestrator {
	if deps.Intake == nil || deps.Normalizer == nil || deps.Classifier == nil || deps.Mapper == nil ||
		deps.Evidence == nil || deps.Reasoner == nil || deps.Renderer == nil {
		panic("nil dependency injected into CaseOrchestrator")
	}
	return &CaseOrchestrator{
		deps:   deps,
		runner: newRunner(CasePipeline, deps.Publisher, deps.EventTopic, deps.Metrics, deps.Logger),
	}
}

// Analyze runs the case pipeline. It never returns nil; failures come back
// as a result with status "error".
func (o *CaseOrchestrator) Analyze(ctx context.Context, req CaseRequest) *legal.PipelineResult {
	started := o.now()
	res := legal.NewPipelineResult(defaultTitle(req.CaseTitle, "CASE", started), "", started)
	o.logger.Info("starting case analysis pipeline", logging.String("case_title", res.CaseTitle))

	var (
		upload         UploadOutput
		cleaned        string
		classification legal.ClassificationResult
		mapping        legal.SectionMapping
		bundle         legal.EvidenceBundle
		analysis       legal.Analysis
		artifact       *legal.ReportArtifact
	)
	id := caseID(res.CaseTitle)

	steps := []struct {
		name legal.Stage
		fn   func() (interface{}, error)
	}{
		{legal.StageUpload, func() (interface{}, error) {
			upload = o.upload(ctx, req)
			return upload, nil
		}},
		{legal.StagePreprocess, func() (interface{}, error) {
			text := upload.combinedText()
			if text == "" {
				o.logger.Warn("no statement, FIR or document text to analyze")
			}
			o.logger.Info("combined text", logging.Int("length", len(text)))
			norm := o.deps.Normalizer.Process(ctx, text, preprocess.Options{Translate: req.Translate, Clean: req.Clean})
			cleaned = norm.CleanedText
			if cleaned == "" {
				cleaned = text
			}
			return norm, nil
		}},
		{legal.StageClassification, func() (interface{}, error) {
			classification = o.deps.Classifier.Classify(ctx, cleaned, req.UseEmbeddings)
			return classification, nil
		}},
		{legal.StageSections, func() (interface{}, error) {
			mapping = o.deps.Mapper.MapSections(classification.Domain, classification.PrimaryIssue, classification.SecondaryIssues)
			return mapping, nil
		}},
		{legal.StageEvidence, func() (interface{}, error) {
			bundle = o.deps.Evidence.Extract(ctx, cleaned)
			return bundle, nil
		}},
		{legal.StageAnalysis, func() (interface{}, error) {
			analysis = o.deps.Reasoner.AnalyzeCase(ctx, o.facts(id, res.CaseTitle, cleaned, classification, mapping, bundle))
			return analysis, nil
		}},
		{legal.StageReport, func() (interface{}, error) {
			var err error
			artifact, err = o.deps.Renderer.RenderCase(ctx, o.facts(id, res.CaseTitle, cleaned, classification, mapping, bundle), analysis)
			if err != nil {
				return nil, err
			}
			return artifact, nil
		}},
	}

	for i, s := range steps {
		if _, err := o.stage(ctx, res, s.name, i+1, caseStages, s.fn); err != nil {
			return o.fail(res, err)
		}
	}

	res.CaseID = id
	res.PDFPath = artifact.PDFPath
	res.Summary = legal.CaseSummary{
		Domain:          classification.Domain,
		PrimaryIssue:    classification.PrimaryIssue,
		SectionsCount:   len(mapping.AllSections),
		WitnessesCount:  bundle.Summary.ConfirmedWitnesses,
		DocumentsCount:  bundle.Summary.TotalDocuments,
		ReportObjectKey: reportObjectKey(artifact),
	}
	return o.complete(ctx, res, classification.Domain, reportObjectKey(artifact))
}

func (o *CaseOrchestrator) facts(id, title, text string, c legal.ClassificationResult, m legal.SectionMapping, b legal.EvidenceBundle) legal.CaseFacts {
	return legal.CaseFacts{
		CaseID:         id,
		CaseTitle:      title,
		Facts:          text,
		Classification: c,
		Sections:       m,
		Evidence:       b,
	}
}

func (o *CaseOrchestrator) upload(ctx context.Context, req CaseRequest) UploadOutput {
	out := UploadOutput{OtherDocuments: []legal.DocumentText{}}
	out.Statement = o.textOrFile(ctx, req.StatementText, req.Statement)
	out.FIR = o.textOrFile(ctx, req.FIRText, req.FIR)
	for _, f := range req.OtherFiles {
		out.OtherDocuments = append(out.OtherDocuments, o.deps.Intake.Extract(ctx, f.Filename, f.Data))
	}
	return out
}

func (o *CaseOrchestrator) textOrFile(ctx context.Context, text string, file *FileInput) *legal.DocumentText {
	switch {
	case text != "":
		return &legal.DocumentText{Text: text, Method: MethodTextInput, CharCount: utf8.RuneCountInString(text)}
	case file != nil:
		doc := o.deps.Intake.Extract(ctx, file.Filename, file.Data)
		return &doc
	default:
		return nil
	}
}
