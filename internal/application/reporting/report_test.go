package reporting

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

type fakeStorage struct {
	prefix string
	paths  []string
	meta   map[string]string
	err    error
}

func (f *fakeStorage) PublishFiles(_ context.Context, prefix string, paths []string, meta map[string]string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.prefix, f.paths, f.meta = prefix, paths, meta
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		keys = append(keys, prefix+"/"+filepath.Base(p))
	}
	return keys, nil
}

func boolPtr(b bool) *bool { return &b }

func sampleCaseFacts() legal.CaseFacts {
	return legal.CaseFacts{
		CaseID: "CASE_20240125_101500",
		Facts:  "The accused broke into the house and stole jewellery worth Rs. 50,000.",
		Classification: legal.ClassificationResult{
			Domain:          "Criminal",
			PrimaryIssue:    "Theft",
			SecondaryIssues: []string{"Trespass"},
		},
		Sections: legal.SectionMapping{
			AllSections: []legal.SectionRecord{
				{
					Act: "IPC", Issue: "Theft", Type: legal.SectionPrimary,
					Section: legal.Section{Section: "379", Title: "Punishment for theft", Description: "Whoever commits theft",
						Punishment: "Up to 3 years", Bailable: boolPtr(false), Cognizable: boolPtr(true)},
				},
			},
		},
		Evidence: legal.EvidenceBundle{
			Witnesses: []legal.Witness{
				{Name: "Suresh", Span: legal.Span{Type: "PERSON"}, IsWitness: true},
				{Name: "Ramesh", Span: legal.Span{Type: "PERSON"}},
			},
			Money: []legal.MoneyMention{{Amount: "Rs. 50,000"}},
		},
	}
}

func newTestService(t *testing.T, pdf bool, storage StorageRepository) (*reportServiceImpl, string) {
	t.Helper()
	dir := t.TempDir()
	svc := NewReportService(Options{OutputDir: dir, RenderPDF: pdf, Storage: storage}, nil, nil).(*reportServiceImpl)
	svc.now = func() time.Time { return time.Date(2024, 1, 25, 10, 15, 0, 0, time.UTC) }
	return svc, dir
}

func TestRenderCase_WritesMarkdownAndPDF(t *testing.T) {
	svc, dir := newTestService(t, true, nil)

	art, err := svc.RenderCase(context.Background(), sampleCaseFacts(), legal.Analysis{Analysis: "## Issues\n\n- **Theft** is made out"})
	require.NoError(t, err)

	caseDir := filepath.Join(dir, "CASE_20240125_101500")
	assert.Equal(t, caseDir, art.CaseDirectory)
	assert.Equal(t, filepath.Join(caseDir, CaseMarkdownFile), art.MarkdownPath)
	assert.Equal(t, filepath.Join(caseDir, CasePDFFile), art.PDFPath)
	assert.Empty(t, art.ObjectKeys)

	md, err := os.ReadFile(art.MarkdownPath)
	require.NoError(t, err)
	text := string(md)
	for _, want := range []string{
		"# Legal Case Analysis Report",
		"**Generated:** January 25, 2024 at 10:15 AM",
		"## 1. Case Facts",
		"**Secondary Issues:** Trespass",
		"### 1. IPC Section 379",
		"**Bailable:** No",
		"**Cognizable:** Yes",
		"### Witnesses (1 confirmed)",
		"- **Suresh** (PERSON)",
		"### Monetary Amounts",
		"## 5. Legal Analysis",
		"- **Theft** is made out",
		"1 relevant legal section(s) have been identified",
		"## Disclaimer",
	} {
		assert.Contains(t, text, want)
	}
	assert.NotContains(t, text, "Ramesh")

	pdf, err := os.ReadFile(art.PDFPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF-"))
}

func TestRenderCase_EmptyInputs(t *testing.T) {
	svc, _ := newTestService(t, false, nil)

	art, err := svc.RenderCase(context.Background(), legal.CaseFacts{CaseID: "CASE_X"}, legal.Analysis{})
	require.NoError(t, err)
	assert.Empty(t, art.PDFPath)

	md, err := os.ReadFile(art.MarkdownPath)
	require.NoError(t, err)
	text := string(md)
	assert.Contains(t, text, "No facts provided")
	assert.Contains(t, text, "No sections identified.")
	assert.Contains(t, text, "No evidence extracted.")
	assert.Contains(t, text, "No analysis available")
	assert.Contains(t, text, "Further investigation is required")
}

func TestRenderCase_RequiresCaseID(t *testing.T) {
	svc, _ := newTestService(t, false, nil)
	_, err := svc.RenderCase(context.Background(), legal.CaseFacts{}, legal.Analysis{})
	assert.Error(t, err)
}

func TestRenderCase_RejectsEscapingCaseID(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "reports")
	svc := NewReportService(Options{OutputDir: out}, nil, nil)

	for _, id := range []string{"../escaped", "..", ".", "a/b", `a\b`} {
		_, err := svc.RenderCase(context.Background(), legal.CaseFacts{CaseID: id}, legal.Analysis{})
		require.Error(t, err, id)
		assert.True(t, errors.IsCode(err, errors.ErrCodeValidation), id)
	}
	_, err := os.Stat(filepath.Join(root, "escaped"))
	assert.True(t, os.IsNotExist(err))

	art, err := svc.RenderCase(context.Background(), legal.CaseFacts{CaseID: ".._escaped"}, legal.Analysis{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, ".._escaped"), art.CaseDirectory)
}

func TestRenderAdvisory_Publishes(t *testing.T) {
	store := &fakeStorage{}
	svc, _ := newTestService(t, true, store)

	facts := legal.AdvisoryFacts{
		CaseID:         "ADVISORY_1",
		Objective:      "Recover the security deposit",
		Background:     "Tenant vacated in March.",
		Classification: legal.AdvisoryClassification{Domain: "Property"},
		References: []legal.RetrievedChunk{
			{Text: "deposit rules", Metadata: map[string]interface{}{"source": "property_laws.txt"}, Distance: 0.25},
		},
	}
	art, err := svc.RenderAdvisory(context.Background(), facts, legal.Analysis{Analysis: "Send a legal notice."}, []string{"lease.pdf"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ADVISORY_1/" + AdvisoryMarkdownFile, "ADVISORY_1/" + AdvisoryPDFFile}, art.ObjectKeys)
	assert.Equal(t, "ADVISORY_1", store.prefix)
	assert.Equal(t, "advisory", store.meta["report-type"])
	assert.Equal(t, "Property", store.meta["domain"])

	md, err := os.ReadFile(art.MarkdownPath)
	require.NoError(t, err)
	text := string(md)
	assert.Contains(t, text, "- **Advisory Domain**: Property")
	assert.Contains(t, text, "## DOCUMENTS REVIEWED\n\n- lease.pdf")
	assert.Contains(t, text, "1. property_laws.txt (distance 0.250)")
	assert.Contains(t, text, "Send a legal notice.")
	assert.Contains(t, text, "## LEGAL DISCLAIMER")
}

func TestRender_PublishFailureKeepsLocalFiles(t *testing.T) {
	svc, _ := newTestService(t, false, &fakeStorage{err: assert.AnError})

	art, err := svc.RenderCase(context.Background(), sampleCaseFacts(), legal.Analysis{})
	require.NoError(t, err)
	assert.Empty(t, art.ObjectKeys)
	assert.FileExists(t, art.MarkdownPath)
}

func TestTemplateEngine(t *testing.T) {
	t.Parallel()
	eng := NewTemplateEngine()
	assert.ElementsMatch(t, []string{AdvisoryTemplate, CaseTemplate}, eng.Templates())

	_, err := eng.Render(context.Background(), "missing.md.tmpl", struct{}{})
	assert.Error(t, err)

	_, err = eng.Render(context.Background(), CaseTemplate, nil)
	assert.Error(t, err)
}

func TestFirst(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []int{1, 2}, first(2, []int{1, 2, 3}))
	assert.Equal(t, []int{1}, first(5, []int{1}))
	assert.Equal(t, "x", first(1, "x"))
}

func TestMarkdownToPDF_Tables(t *testing.T) {
	t.Parallel()
	md := "# Title\n\n| Act | Section |\n|---|---|\n| IPC | 379 |\n\nText with **bold** and ₹ symbol\n---\n"
	out, err := markdownToPDF(md, "test")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF-"))
}
