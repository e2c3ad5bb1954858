// Package reporting renders case and advisory reports as Markdown and PDF
// under a per-case directory and, when an object store is configured,
// publishes the files.
package reporting

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

// Output file names inside a case directory.
const (
	CaseMarkdownFile     = "case_analysis_report.md"
	CasePDFFile          = "case_analysis_report.pdf"
	AdvisoryMarkdownFile = "advisory_report.md"
	AdvisoryPDFFile      = "advisory_report.pdf"
)

// ─────────────────────────────────────────────────────────────────────────────
// Collaborators
// ─────────────────────────────────────────────────────────────────────────────

// StorageRepository publishes rendered files. Implemented by the MinIO
// report store.
type StorageRepository interface {
	PublishFiles(ctx context.Context, prefix string, paths []string, metadata map[string]string) ([]string, error)
}

// ReportService renders reports.
type ReportService interface {
	RenderCase(ctx context.Context, facts legal.CaseFacts, analysis legal.Analysis) (*legal.ReportArtifact, error)
	RenderAdvisory(ctx context.Context, facts legal.AdvisoryFacts, analysis legal.Analysis, documentsReviewed []string) (*legal.ReportArtifact, error)
}

// Options configures the report service.
type Options struct {
	OutputDir string
	// RenderPDF disables PDF output when false; Markdown is always written.
	RenderPDF bool
	Storage   StorageRepository
}

type reportServiceImpl struct {
	outputDir string
	renderPDF bool
	templater TemplateEngine
	storage   StorageRepository
	logger    logging.Logger
	now       func() time.Time
}

func NewReportService(opts Options, templater TemplateEngine, log logging.Logger) ReportService {
	if templater == nil {
		templater = NewTemplateEngine()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "documents"
	}
	return &reportServiceImpl{
		outputDir: opts.OutputDir,
		renderPDF: opts.RenderPDF,
		templater: templater,
		storage:   opts.Storage,
		logger:    log.Named("reporting"),
		now:       time.Now,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Template data
// ─────────────────────────────────────────────────────────────────────────────

type caseReportData struct {
	CaseID             string
	GeneratedAt        time.Time
	Facts              string
	Domain             string
	PrimaryIssue       string
	SecondaryIssues    []string
	Sections           []legal.SectionRecord
	Evidence           legal.EvidenceBundle
	ConfirmedWitnesses []legal.Witness
	HasEvidence        bool
	Analysis           string
}

type advisoryReportData struct {
	CaseID            string
	GeneratedAt       time.Time
	Domain            string
	Objective         string
	Background        string
	DocumentsReviewed []string
	References        []referenceData
	Analysis          string
}

type referenceData struct {
	Source   string
	Distance float64
}

func hasEvidence(b legal.EvidenceBundle) bool {
	return len(b.Witnesses)+len(b.Documents)+len(b.Dates)+len(b.Locations)+len(b.Money) > 0
}

// ─────────────────────────────────────────────────────────────────────────────
// Rendering
// ─────────────────────────────────────────────────────────────────────────────

func (s *reportServiceImpl) RenderCase(ctx context.Context, facts legal.CaseFacts, analysis legal.Analysis) (*legal.ReportArtifact, error) {
	if facts.CaseID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "case id is required")
	}
	data := caseReportData{
		CaseID:             facts.CaseID,
		GeneratedAt:        s.now(),
		Facts:              facts.Facts,
		Domain:             facts.Classification.Domain,
		PrimaryIssue:       facts.Classification.PrimaryIssue,
		SecondaryIssues:    facts.Classification.SecondaryIssues,
		Sections:           facts.Sections.AllSections,
		Evidence:           facts.Evidence,
		ConfirmedWitnesses: facts.Evidence.ConfirmedWitnesses(),
		HasEvidence:        hasEvidence(facts.Evidence),
		Analysis:           analysis.Analysis,
	}
	return s.render(ctx, facts.CaseID, CaseTemplate, data, CaseMarkdownFile, CasePDFFile,
		"Legal Case Analysis Report", map[string]string{"report-type": "case", "domain": data.Domain})
}

func (s *reportServiceImpl) RenderAdvisory(ctx context.Context, facts legal.AdvisoryFacts, analysis legal.Analysis, documentsReviewed []string) (*legal.ReportArtifact, error) {
	if facts.CaseID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "case id is required")
	}
	refs := make([]referenceData, 0, len(facts.References))
	for _, r := range facts.References {
		refs = append(refs, referenceData{Source: r.Source(), Distance: r.Distance})
	}
	data := advisoryReportData{
		CaseID:            facts.CaseID,
		GeneratedAt:       s.now(),
		Domain:            facts.Classification.Domain,
		Objective:         facts.Objective,
		Background:        facts.Background,
		DocumentsReviewed: documentsReviewed,
		References:        refs,
		Analysis:          analysis.Analysis,
	}
	return s.render(ctx, facts.CaseID, AdvisoryTemplate, data, AdvisoryMarkdownFile, AdvisoryPDFFile,
		"Pre-Litigation Advisory Report", map[string]string{"report-type": "advisory", "domain": data.Domain})
}

// caseDirectory resolves the per-case directory. The id must name a single
// path element directly under outputDir.
func caseDirectory(outputDir, caseID string) (string, error) {
	if caseID == "" || caseID == "." || caseID == ".." ||
		strings.ContainsAny(caseID, `/\`) || filepath.VolumeName(caseID) != "" {
		return "", errors.Newf(errors.ErrCodeValidation, "invalid case id %q", caseID)
	}
	dir := filepath.Join(outputDir, caseID)
	rel, err := filepath.Rel(outputDir, dir)
	if err != nil || rel != caseID {
		return "", errors.Newf(errors.ErrCodeValidation, "case id %q escapes the reports directory", caseID)
	}
	return dir, nil
}

func (s *reportServiceImpl) render(ctx context.Context, caseID, tmpl string, data interface{}, mdName, pdfName, title string, meta map[string]string) (*legal.ReportArtifact, error) {
	renderCtx, cancel := context.WithTimeout(ctx, TemplateRenderTimeout)
	defer cancel()

	md, err := s.templater.Render(renderCtx, tmpl, data)
	if err != nil {
		return nil, err
	}

	dir, err := caseDirectory(s.outputDir, caseID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeReportFailed, "failed to create case directory").WithDetail(dir)
	}

	art := &legal.ReportArtifact{CaseID: caseID, CaseDirectory: dir}
	art.MarkdownPath = filepath.Join(dir, mdName)
	if err := os.WriteFile(art.MarkdownPath, md, 0o644); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeReportFailed, "failed to write markdown report")
	}
	files := []string{art.MarkdownPath}

	if s.renderPDF {
		pdf, err := markdownToPDF(string(md), title+" "+caseID)
		if err != nil {
			return nil, err
		}
		art.PDFPath = filepath.Join(dir, pdfName)
		if err := os.WriteFile(art.PDFPath, pdf, 0o644); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeReportFailed, "failed to write PDF report")
		}
		files = append(files, art.PDFPath)
	}

	if s.storage != nil {
		meta["case-id"] = caseID
		keys, err := s.storage.PublishFiles(ctx, caseID, files, meta)
		if err != nil {
			// The local copy is authoritative; publishing is best effort.
			s.logger.Warn("failed to publish report", logging.String("case_id", caseID), logging.Err(err))
		} else {
			art.ObjectKeys = keys
		}
	}

	art.GeneratedAt = s.now()
	s.logger.Info("report generated",
		logging.String("case_id", caseID),
		logging.String("markdown", art.MarkdownPath),
		logging.String("pdf", art.PDFPath),
		logging.Int("published", len(art.ObjectKeys)))
	return art, nil
}
