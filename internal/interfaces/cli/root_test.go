package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LegalLens/internal/application/knowledge"
	"github.com/turtacn/LegalLens/internal/application/pipeline"
	"github.com/turtacn/LegalLens/internal/config"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/intelligence/retrieval"
	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeClassifier struct{ gotText string }

func (f *fakeClassifier) Classify(_ context.Context, text string, _ bool) legal.ClassificationResult {
	f.gotText = text
	return legal.ClassificationResult{
		Domain:          "Criminal",
		Confidence:      0.8,
		PrimaryIssue:    "theft",
		Method:          legal.MethodKeywords,
		AllDomainScores: map[string]float64{"Criminal": 0.8, "Civil": 0.2},
	}
}

type fakeDocuments struct{}

func (fakeDocuments) Extract(_ context.Context, filename string, _ []byte) legal.DocumentText {
	return legal.DocumentText{Text: "decoded " + filename, Filename: filename}
}

type fakeKnowledge struct {
	ingested knowledge.IngestRequest
	loaded   string
}

func (f *fakeKnowledge) Ingest(_ context.Context, req knowledge.IngestRequest) (*knowledge.IngestResult, error) {
	f.ingested = req
	return &knowledge.IngestResult{Success: true, Domain: req.Domain, Source: req.Metadata["source"].(string), Chunks: 2}, nil
}

func (f *fakeKnowledge) LoadDirectory(_ context.Context, dir string) (retrieval.LoadResult, error) {
	f.loaded = dir
	return retrieval.LoadResult{Loaded: []string{"property_laws.txt"}}, nil
}

func (f *fakeKnowledge) Retrieve(context.Context, string, string, int) []legal.RetrievedChunk {
	return nil
}

func (f *fakeKnowledge) Stats(context.Context) map[string]knowledge.DomainStats {
	return map[string]knowledge.DomainStats{
		"Property": {CollectionStats: retrieval.CollectionStats{Collection: "property_laws", DocumentCount: 4}, Sources: 1},
	}
}

type fakeCases struct {
	got    pipeline.CaseRequest
	status legal.PipelineStatus
}

func (f *fakeCases) Analyze(_ context.Context, req pipeline.CaseRequest) *legal.PipelineResult {
	f.got = req
	res := &legal.PipelineResult{CaseTitle: req.CaseTitle, CaseType: "litigation", Status: f.status}
	if f.status == legal.StatusError {
		res.Error = "classification: boom"
	}
	return res
}

type fakeMigrator struct {
	downSteps int
	forced    int
}

func (f *fakeMigrator) Up() error { return nil }

func (f *fakeMigrator) Down(steps int) error {
	f.downSteps = steps
	return nil
}

func (f *fakeMigrator) Status() (uint, bool, error) { return 3, false, nil }

func (f *fakeMigrator) Force(v int) error {
	f.forced = v
	return nil
}

func factoryFor(svc *Services, cleaned *bool) ServiceFactory {
	return func(context.Context, *config.Config, logging.Logger) (*Services, func(), error) {
		return svc, func() {
			if cleaned != nil {
				*cleaned = true
			}
		}, nil
	}
}

func run(t *testing.T, factory ServiceFactory, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(factory)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--no-color"}, args...))
	cmd, err := root.ExecuteC()
	if cc, ccErr := GetCLIContext(cmd); ccErr == nil {
		cc.Close()
	}
	return out.String(), err
}

// ─────────────────────────────────────────────────────────────────────────────
// Root
// ─────────────────────────────────────────────────────────────────────────────

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand(nil)
	assert.Equal(t, "legallens", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"classify", "sections", "evidence", "advise", "analyze", "ingest", "retrieve", "stats", "migrate"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	for _, flag := range []string{"config", "log-level", "output", "no-color", "timeout"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestRoot_RejectsUnknownOutputFormat(t *testing.T) {
	_, err := run(t, factoryFor(&Services{}, nil), "", "-o", "yaml", "stats")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestRoot_MissingServiceIsFeatureDisabled(t *testing.T) {
	_, err := run(t, factoryFor(&Services{}, nil), "", "classify", "some", "text")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeatureDisabled))
	assert.Contains(t, err.Error(), "issue classifier")
}

func TestRoot_FactoryErrorPropagates(t *testing.T) {
	factory := func(context.Context, *config.Config, logging.Logger) (*Services, func(), error) {
		return nil, nil, errors.New(errors.ErrCodeDatabaseError, "postgres unreachable")
	}
	_, err := run(t, factory, "", "stats")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
}

func TestRoot_CleanupRunsAfterCommand(t *testing.T) {
	var cleaned bool
	_, err := run(t, factoryFor(&Services{Knowledge: &fakeKnowledge{}}, &cleaned), "", "stats")
	require.NoError(t, err)
	assert.True(t, cleaned)
}

// ─────────────────────────────────────────────────────────────────────────────
// Input and output
// ─────────────────────────────────────────────────────────────────────────────

func TestClassify_JSONOutput(t *testing.T) {
	cls := &fakeClassifier{}
	out, err := run(t, factoryFor(&Services{Classifier: cls}, nil), "", "-o", "json", "classify", "my", "phone", "was", "stolen")
	require.NoError(t, err)
	assert.Equal(t, "my phone was stolen", cls.gotText)

	var res legal.ClassificationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "Criminal", res.Domain)
	assert.Equal(t, "theft", res.PrimaryIssue)
}

func TestClassify_TextOutput(t *testing.T) {
	out, err := run(t, factoryFor(&Services{Classifier: &fakeClassifier{}}, nil), "", "classify", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "Primary issue: theft")
	assert.Contains(t, out, "80%")
	assert.Contains(t, strings.ToUpper(out), "DOMAIN")
}

func TestClassify_ReadsStdin(t *testing.T) {
	cls := &fakeClassifier{}
	_, err := run(t, factoryFor(&Services{Classifier: cls}, nil), "from stdin", "classify", "-")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", cls.gotText)
}

func TestClassify_ReadsFileThroughDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	cls := &fakeClassifier{}
	_, err := run(t, factoryFor(&Services{Classifier: cls, Documents: fakeDocuments{}}, nil), "", "classify", "-f", path)
	require.NoError(t, err)
	assert.Equal(t, "decoded "+path, cls.gotText)
}

func TestClassify_NoInput(t *testing.T) {
	_, err := run(t, factoryFor(&Services{Classifier: &fakeClassifier{}}, nil), "", "classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

// ─────────────────────────────────────────────────────────────────────────────
// Pipelines
// ─────────────────────────────────────────────────────────────────────────────

func TestAnalyzeCase_BuildsRequest(t *testing.T) {
	dir := t.TempDir()
	fir := filepath.Join(dir, "fir.txt")
	require.NoError(t, os.WriteFile(fir, []byte("FIR text"), 0o600))

	cases := &fakeCases{status: legal.StatusSuccess}
	out, err := run(t, factoryFor(&Services{Cases: cases}, nil), "",
		"-o", "json", "analyze", "case", "--title", "Theft", "--statement-text", "stolen", "--fir", fir)
	require.NoError(t, err)

	assert.Equal(t, "Theft", cases.got.CaseTitle)
	assert.Equal(t, "stolen", cases.got.StatementText)
	require.NotNil(t, cases.got.FIR)
	assert.Equal(t, "fir.txt", cases.got.FIR.Filename)
	assert.Equal(t, []byte("FIR text"), cases.got.FIR.Data)
	assert.False(t, cases.got.Translate)
	assert.True(t, cases.got.Clean)
	assert.Contains(t, out, `"case_title": "Theft"`)
}

func TestAnalyzeCase_TranslateIsOptIn(t *testing.T) {
	cases := &fakeCases{status: legal.StatusSuccess}
	_, err := run(t, factoryFor(&Services{Cases: cases}, nil), "",
		"analyze", "case", "--statement-text", "stolen", "--translate", "--no-clean")
	require.NoError(t, err)
	assert.True(t, cases.got.Translate)
	assert.False(t, cases.got.Clean)
}

func TestAnalyzeCase_FailureExitsWithError(t *testing.T) {
	cases := &fakeCases{status: legal.StatusError}
	out, err := run(t, factoryFor(&Services{Cases: cases}, nil), "", "analyze", "case", "--statement-text", "x")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodePipelineStageFailed))
	assert.Contains(t, out, "Pipeline failed")
}

func TestAnalyzeCase_MissingFile(t *testing.T) {
	_, err := run(t, factoryFor(&Services{Cases: &fakeCases{}}, nil), "", "analyze", "case", "--fir", "/does/not/exist.txt")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestAnalyzeAdvisory_RequiresObjective(t *testing.T) {
	_, err := run(t, factoryFor(&Services{}, nil), "", "analyze", "advisory", "--background", "bg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--objective")
}

// ─────────────────────────────────────────────────────────────────────────────
// Knowledge
// ─────────────────────────────────────────────────────────────────────────────

func TestIngest_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenancy.txt")
	require.NoError(t, os.WriteFile(path, []byte("Rent Control Act"), 0o600))

	kn := &fakeKnowledge{}
	out, err := run(t, factoryFor(&Services{Knowledge: kn}, nil), "", "ingest", "--domain", "Property", "-f", path)
	require.NoError(t, err)
	assert.Equal(t, "Property", kn.ingested.Domain)
	assert.Equal(t, "Rent Control Act", kn.ingested.Text)
	assert.Equal(t, "tenancy.txt", kn.ingested.Metadata["source"])
	assert.Contains(t, out, "ingested tenancy.txt")
}

func TestIngest_Directory(t *testing.T) {
	kn := &fakeKnowledge{}
	out, err := run(t, factoryFor(&Services{Knowledge: kn}, nil), "", "-o", "json", "ingest", "--dir", "/knowledge")
	require.NoError(t, err)
	assert.Equal(t, "/knowledge", kn.loaded)
	assert.Contains(t, out, "property_laws.txt")
}

func TestIngest_FileAndDirAreExclusive(t *testing.T) {
	_, err := run(t, factoryFor(&Services{Knowledge: &fakeKnowledge{}}, nil), "", "ingest")
	require.Error(t, err)
	_, err = run(t, factoryFor(&Services{Knowledge: &fakeKnowledge{}}, nil), "", "ingest", "-f", "a", "--dir", "b")
	require.Error(t, err)
}

func TestRetrieve_EmptyResultIsJSONArray(t *testing.T) {
	out, err := run(t, factoryFor(&Services{Knowledge: &fakeKnowledge{}}, nil), "", "-o", "json", "retrieve", "--domain", "Tax", "gst")
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestStats_Table(t *testing.T) {
	out, err := run(t, factoryFor(&Services{Knowledge: &fakeKnowledge{}}, nil), "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "property_laws")
	assert.Contains(t, out, "Property")
}

// ─────────────────────────────────────────────────────────────────────────────
// Migrations
// ─────────────────────────────────────────────────────────────────────────────

func TestMigrate(t *testing.T) {
	m := &fakeMigrator{}
	svc := &Services{Migrator: m}

	out, err := run(t, factoryFor(svc, nil), "", "migrate", "down", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, m.downSteps)
	assert.Contains(t, out, "schema version 3 (clean)")

	_, err = run(t, factoryFor(svc, nil), "", "migrate", "force", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, m.forced)

	_, err = run(t, factoryFor(svc, nil), "", "migrate", "down", "zero")
	require.Error(t, err)

	_, err = run(t, factoryFor(&Services{}, nil), "", "migrate", "status")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeatureDisabled))
}
