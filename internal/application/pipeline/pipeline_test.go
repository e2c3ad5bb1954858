package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LegalLens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/LegalLens/internal/intelligence/preprocess"
	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeIntake struct{ calls []string }

func (f *fakeIntake) Extract(_ context.Context, filename string, data []byte) legal.DocumentText {
	f.calls = append(f.calls, filename)
	return legal.DocumentText{Filename: filename, Text: string(data), Method: "direct", CharCount: len(data)}
}

type fakeNormalizer struct {
	last  preprocess.Options
	calls int
}

func (f *fakeNormalizer) Process(_ context.Context, text string, opts preprocess.Options) legal.NormalizedText {
	f.last = opts
	f.calls++
	out := legal.NormalizedText{OriginalText: text, CleanedText: text, Steps: []string{"cleaning"}, FinalLength: len(text)}
	if text == "" {
		out.Error = preprocess.ErrNoText
	}
	return out
}

type fakeClassifier struct{ text string }

func (f *fakeClassifier) Classify(_ context.Context, text string, _ bool) legal.ClassificationResult {
	f.text = text
	return legal.ClassificationResult{Domain: "Criminal", Confidence: 1, PrimaryIssue: "Theft", Method: legal.MethodKeywords}
}

type fakeMapper struct{ panicWith interface{} }

func (f *fakeMapper) MapSections(domain, primary string, _ []string) legal.SectionMapping {
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return legal.SectionMapping{
		Domain:       domain,
		PrimaryIssue: primary,
		AllSections: []legal.SectionRecord{
			{Act: "IPC", Issue: primary, Type: legal.SectionPrimary, Section: legal.Section{Section: "379"}},
			{Act: "BNS", Issue: primary, Type: legal.SectionPrimary, Section: legal.Section{Section: "303"}},
		},
	}
}

type fakeEvidence struct{}

func (fakeEvidence) Extract(_ context.Context, text string) legal.EvidenceBundle {
	return legal.EvidenceBundle{
		Witnesses: []legal.Witness{{Name: "Ramesh", IsWitness: true}},
		Summary:   legal.EvidenceSummary{TotalWitnesses: 1, ConfirmedWitnesses: 1, TotalDocuments: 2, TextLength: len(text)},
	}
}

type fakeAdvisoryClassifier struct{}

func (fakeAdvisoryClassifier) Classify(context.Context, string) legal.AdvisoryClassification {
	return legal.AdvisoryClassification{Domain: "Property", Confidence: 0.82}
}

type fakeRetriever struct {
	domain string
	topK   int
}

func (f *fakeRetriever) Retrieve(_ context.Context, domain, _ string, topK int) []legal.RetrievedChunk {
	f.domain, f.topK = domain, topK
	return []legal.RetrievedChunk{
		{Text: "a", Metadata: map[string]interface{}{"source": "property_laws.txt"}, Distance: 0.1},
		{Text: "b", Metadata: map[string]interface{}{}, Distance: 0.2},
	}
}

type fakeReasoner struct{}

func (fakeReasoner) AnalyzeCase(_ context.Context, f legal.CaseFacts) legal.Analysis {
	return legal.Analysis{Analysis: "case analysis for " + f.CaseID, Method: legal.AnalysisMethodTemplate}
}

func (fakeReasoner) AnalyzeAdvisory(_ context.Context, f legal.AdvisoryFacts) legal.Analysis {
	return legal.Analysis{Analysis: "advice for " + f.CaseID, Method: legal.AnalysisMethodTemplate, ReferencesUsed: len(f.References)}
}

type fakeRenderer struct {
	err       error
	documents []string
}

func (f *fakeRenderer) RenderCase(_ context.Context, facts legal.CaseFacts, _ legal.Analysis) (*legal.ReportArtifact, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &legal.ReportArtifact{CaseID: facts.CaseID, PDFPath: "/reports/" + facts.CaseID + "/case.pdf", ObjectKeys: []string{facts.CaseID + "/case.md", facts.CaseID + "/case.pdf"}}, nil
}

func (f *fakeRenderer) RenderAdvisory(_ context.Context, facts legal.AdvisoryFacts, _ legal.Analysis, docs []string) (*legal.ReportArtifact, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.documents = docs
	return &legal.ReportArtifact{CaseID: facts.CaseID, PDFPath: "/reports/" + facts.CaseID + "/advisory.pdf"}, nil
}

type fakePublisher struct {
	err      error
	topic    string
	event    string
	payloads []kafka.PipelineCompletedPayload
}

func (f *fakePublisher) PublishEvent(_ context.Context, topic, eventType string, _ []byte, payload interface{}) error {
	f.topic, f.event = topic, eventType
	f.payloads = append(f.payloads, payload.(kafka.PipelineCompletedPayload))
	return f.err
}

var fixedNow = time.Date(2024, 1, 25, 10, 15, 0, 0, time.UTC)

func newCase(mapper *fakeMapper, renderer *fakeRenderer, pub EventPublisher) (*CaseOrchestrator, *fakeIntake, *fakeNormalizer) {
	intake, norm := &fakeIntake{}, &fakeNormalizer{}
	o := NewCaseOrchestrator(CaseDeps{
		Intake:     intake,
		Normalizer: norm,
		Classifier: &fakeClassifier{},
		Mapper:     mapper,
		Evidence:   fakeEvidence{},
		Reasoner:   fakeReasoner{},
		Renderer:   renderer,
		Publisher:  pub,
	})
	o.now = func() time.Time { return fixedNow }
	return o, intake, norm
}

// ─────────────────────────────────────────────────────────────────────────────
// Case pipeline
// ─────────────────────────────────────────────────────────────────────────────

func TestCase_Success(t *testing.T) {
	pub := &fakePublisher{}
	o, intake, norm := newCase(&fakeMapper{}, &fakeRenderer{}, pub)

	res := o.Analyze(context.Background(), CaseRequest{
		StatementText: "Ramesh saw the theft.",
		FIR:           &FileInput{Filename: "fir.txt", Data: []byte("FIR text")},
		OtherFiles:    []FileInput{{Filename: "receipt.txt", Data: []byte("receipt")}},
		Clean:         true,
	})

	require.Equal(t, legal.StatusSuccess, res.Status, res.Error)
	assert.Equal(t, "CASE_20240125_101500", res.CaseTitle)
	assert.Equal(t, "CASE_20240125_101500", res.CaseID)
	assert.Equal(t, "/reports/CASE_20240125_101500/case.pdf", res.PDFPath)
	assert.Equal(t, fixedNow, res.CompletedAt)
	for _, s := range []legal.Stage{legal.StageUpload, legal.StagePreprocess, legal.StageClassification,
		legal.StageSections, legal.StageEvidence, legal.StageAnalysis, legal.StageReport} {
		assert.Contains(t, res.Steps, s)
	}
	assert.Len(t, res.Steps, caseStages)

	upload := res.Steps[legal.StageUpload].(UploadOutput)
	assert.Equal(t, MethodTextInput, upload.Statement.Method)
	assert.Equal(t, "fir.txt", upload.FIR.Filename)
	assert.Equal(t, []string{"fir.txt", "receipt.txt"}, intake.calls)
	assert.True(t, norm.last.Clean)

	assert.Equal(t, legal.CaseSummary{
		Domain:          "Criminal",
		PrimaryIssue:    "Theft",
		SectionsCount:   2,
		WitnessesCount:  1,
		DocumentsCount:  2,
		ReportObjectKey: "CASE_20240125_101500/case.pdf",
	}, res.Summary)

	require.Len(t, pub.payloads, 1)
	assert.Equal(t, kafka.TopicPipelineCompleted, pub.topic)
	assert.Equal(t, kafka.EventPipelineCompleted, pub.event)
	assert.Equal(t, CasePipeline, pub.payloads[0].CaseType)
	assert.Equal(t, "Criminal", pub.payloads[0].Domain)
}

func TestCase_CombinedTextJoinsInputs(t *testing.T) {
	classifier := &fakeClassifier{}
	o := NewCaseOrchestrator(CaseDeps{
		Intake: &fakeIntake{}, Normalizer: &fakeNormalizer{}, Classifier: classifier, Mapper: &fakeMapper{},
		Evidence: fakeEvidence{}, Reasoner: fakeReasoner{}, Renderer: &fakeRenderer{},
	})
	o.Analyze(context.Background(), CaseRequest{
		CaseTitle:     "Theft at MG Road",
		StatementText: "statement",
		Statement:     &FileInput{Filename: "ignored.txt", Data: []byte("ignored")},
		FIRText:       "fir",
	})
	assert.Equal(t, "statement\n\nfir", classifier.text)
}

func TestCase_TitleBecomesCaseID(t *testing.T) {
	o, _, _ := newCase(&fakeMapper{}, &fakeRenderer{}, nil)
	res := o.Analyze(context.Background(), CaseRequest{CaseTitle: "Theft at MG Road", StatementText: "x"})
	assert.Equal(t, "Theft at MG Road", res.CaseTitle)
	assert.Equal(t, "Theft_at_MG_Road", res.CaseID)
}

func TestCaseID_StaysInsideReportsDir(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"Theft at MG Road": "Theft_at_MG_Road",
		"../escaped":       ".._escaped",
		`..\..\etc`:        ".._.._etc",
		"..":               "_..",
		".":                "_.",
		"a/b c":            "a_b_c",
	}
	for title, want := range tests {
		assert.Equal(t, want, caseID(title), title)
	}
}

func TestCase_SectionStagePanicDiscardsSteps(t *testing.T) {
	o, _, _ := newCase(&fakeMapper{panicWith: "section table corrupted"}, &fakeRenderer{}, nil)

	res := o.Analyze(context.Background(), CaseRequest{StatementText: "He assaulted me"})

	assert.Equal(t, legal.StatusError, res.Status)
	assert.Contains(t, res.Error, "section table corrupted")
	assert.Equal(t, fixedNow, res.CompletedAt)
	assert.Nil(t, res.Steps)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.ElementsMatch(t, []string{"status", "error", "completed_at"}, keys(fields))
}

func TestCase_NoInputRunsEveryStage(t *testing.T) {
	pub := &fakePublisher{}
	classifier := &fakeClassifier{text: "unset"}
	norm := &fakeNormalizer{}
	o := NewCaseOrchestrator(CaseDeps{
		Intake: &fakeIntake{}, Normalizer: norm, Classifier: classifier, Mapper: &fakeMapper{},
		Evidence: fakeEvidence{}, Reasoner: fakeReasoner{}, Renderer: &fakeRenderer{}, Publisher: pub,
	})
	o.now = func() time.Time { return fixedNow }

	res := o.Analyze(context.Background(), CaseRequest{})

	require.Equal(t, legal.StatusSuccess, res.Status, res.Error)
	assert.Len(t, res.Steps, caseStages)
	assert.Equal(t, 1, norm.calls)
	assert.Equal(t, "", classifier.text)
	pre := res.Steps[legal.StagePreprocess].(legal.NormalizedText)
	assert.Equal(t, preprocess.ErrNoText, pre.Error)
	assert.Len(t, pub.payloads, 1)
}

func TestCase_RendererError(t *testing.T) {
	o, _, _ := newCase(&fakeMapper{}, &fakeRenderer{err: errors.New(errors.ErrCodeReportFailed, "disk full")}, nil)
	res := o.Analyze(context.Background(), CaseRequest{StatementText: "x"})
	assert.Equal(t, legal.StatusError, res.Status)
	assert.Contains(t, res.Error, "disk full")
}

func TestCase_CancelledContext(t *testing.T) {
	o, _, _ := newCase(&fakeMapper{}, &fakeRenderer{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := o.Analyze(ctx, CaseRequest{StatementText: "x"})
	assert.Equal(t, legal.StatusError, res.Status)
}

func TestCase_PublishFailureDoesNotFail(t *testing.T) {
	o, _, _ := newCase(&fakeMapper{}, &fakeRenderer{}, &fakePublisher{err: assert.AnError})
	res := o.Analyze(context.Background(), CaseRequest{StatementText: "x"})
	assert.Equal(t, legal.StatusSuccess, res.Status)
}

func TestCase_Idempotent(t *testing.T) {
	o, _, _ := newCase(&fakeMapper{}, &fakeRenderer{}, nil)
	req := CaseRequest{CaseTitle: "same", StatementText: "Ramesh saw the theft", Clean: true}

	a := o.Analyze(context.Background(), req)
	b := o.Analyze(context.Background(), req)
	assert.Equal(t, a.Steps, b.Steps)
}

func TestNewCaseOrchestrator_PanicsOnMissingDeps(t *testing.T) {
	assert.Panics(t, func() { NewCaseOrchestrator(CaseDeps{}) })
}

// ─────────────────────────────────────────────────────────────────────────────
// Advisory pipeline
// ─────────────────────────────────────────────────────────────────────────────

func newAdvisory(renderer *fakeRenderer, ret *fakeRetriever, pub EventPublisher) (*AdvisoryOrchestrator, *fakeNormalizer) {
	norm := &fakeNormalizer{}
	o := NewAdvisoryOrchestrator(AdvisoryDeps{
		Intake:     &fakeIntake{},
		Normalizer: norm,
		Classifier: fakeAdvisoryClassifier{},
		Retriever:  ret,
		Reasoner:   fakeReasoner{},
		Renderer:   renderer,
		Publisher:  pub,
	})
	o.now = func() time.Time { return fixedNow }
	return o, norm
}

func TestAdvisory_Success(t *testing.T) {
	renderer, ret, pub := &fakeRenderer{}, &fakeRetriever{}, &fakePublisher{}
	o, norm := newAdvisory(renderer, ret, pub)

	res := o.Analyze(context.Background(), AdvisoryRequest{
		Objective:  "Recover my deposit",
		Background: "Landlord refuses",
		Files: []FileInput{
			{Filename: "lease.txt", Data: []byte("lease terms")},
			{Filename: "blank.txt", Data: nil},
		},
	})

	require.Equal(t, legal.StatusSuccess, res.Status, res.Error)
	assert.Equal(t, "advisory", res.CaseType)
	assert.Equal(t, "ADVISORY_20240125_101500", res.CaseID)
	assert.Len(t, res.Steps, advisoryStages)
	assert.False(t, norm.last.Translate)
	assert.True(t, norm.last.Clean)

	assert.Equal(t, DocumentsOutput{FilesProcessed: 1, Files: []string{"lease.txt"}}, res.Steps[legal.StageDocuments])
	assert.Equal(t, RetrievalOutput{
		Domain:             "Property",
		DocumentsRetrieved: 2,
		Sources:            []string{"property_laws.txt", unknownSource},
	}, res.Steps[legal.StageRetrieval])
	assert.Equal(t, "Property", ret.domain)
	assert.Equal(t, 5, ret.topK)
	assert.Equal(t, []string{"lease.txt"}, renderer.documents)

	assert.Equal(t, legal.AdvisorySummary{Domain: "Property", Confidence: 0.82, DocumentsProcessed: 1, KnowledgeSources: 2}, res.Summary)
	require.Len(t, pub.payloads, 1)
	assert.Equal(t, AdvisoryPipeline, pub.payloads[0].CaseType)
}

func TestAdvisory_FailureKeepsCaseType(t *testing.T) {
	o, _ := newAdvisory(&fakeRenderer{err: assert.AnError}, &fakeRetriever{}, nil)
	res := o.Analyze(context.Background(), AdvisoryRequest{Objective: "x"})

	assert.Equal(t, legal.StatusError, res.Status)
	assert.Equal(t, "advisory", res.CaseType)
	assert.Nil(t, res.Steps)
	assert.Empty(t, res.CaseTitle)
}

func TestAdvisory_EmptyInputRunsEveryStage(t *testing.T) {
	o, norm := newAdvisory(&fakeRenderer{}, &fakeRetriever{}, nil)
	res := o.Analyze(context.Background(), AdvisoryRequest{})

	require.Equal(t, legal.StatusSuccess, res.Status, res.Error)
	assert.Len(t, res.Steps, advisoryStages)
	assert.Equal(t, 1, norm.calls)
	pre := res.Steps[legal.StagePreprocess].(legal.NormalizedText)
	assert.Equal(t, preprocess.ErrNoText, pre.Error)
}

func TestHelpers(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "given", defaultTitle("  given ", "CASE", fixedNow))
	assert.Equal(t, "ADVISORY_20240125_101500", defaultTitle("", "ADVISORY", fixedNow))
	assert.Equal(t, "a\n\nc", joinTexts("a", "", "c"))
	assert.Equal(t, "", reportObjectKey(nil))
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
