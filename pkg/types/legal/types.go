// Package legal defines the records exchanged between the analysis
// components, the pipelines and the outer surfaces (HTTP, CLI, reports).
package legal

import (
	"time"

	"github.com/google/uuid"
)

// ─────────────────────────────────────────────────────────────────────────────
// Classification
// ─────────────────────────────────────────────────────────────────────────────

// ClassificationMethod records which signal produced a classification.
type ClassificationMethod string

const (
	MethodKeywords   ClassificationMethod = "keywords"
	MethodEmbeddings ClassificationMethod = "embeddings"
)

// UnknownDomain is reported when no keyword matched.
const UnknownDomain = "Unknown"

// ClassificationResult is the output of the issue classifier.
type ClassificationResult struct {
	Domain          string               `json:"domain"`
	Confidence      float64              `json:"confidence"`
	PrimaryIssue    string               `json:"primary_issue"`
	SecondaryIssues []string             `json:"secondary_issues"`
	AllDomainScores map[string]float64   `json:"all_domain_scores"`
	Method          ClassificationMethod `json:"method"`
	TextLength      int                  `json:"text_length"`
	Error           string               `json:"error,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Sections
// ─────────────────────────────────────────────────────────────────────────────

// Section is one statutory provision as stored in the legal table.
type Section struct {
	Section     string `json:"section"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Punishment  string `json:"punishment,omitempty"`
	Bailable    *bool  `json:"bailable,omitempty"`
	Cognizable  *bool  `json:"cognizable,omitempty"`
}

// SectionType tags whether a section answers the primary or a secondary issue.
type SectionType string

const (
	SectionPrimary   SectionType = "primary"
	SectionSecondary SectionType = "secondary"
)

// SectionRecord is a Section flattened with its origin.
type SectionRecord struct {
	Act   string      `json:"act"`
	Issue string      `json:"issue"`
	Type  SectionType `json:"type"`
	Section
}

// SectionSummary aggregates a mapping.
type SectionSummary struct {
	TotalSections          int      `json:"total_sections"`
	ActsCovered            []string `json:"acts_covered"`
	PrimarySectionsCount   int      `json:"primary_sections_count"`
	SecondarySectionsCount int      `json:"secondary_sections_count"`
}

// SectionMapping is the output of the section mapper.
type SectionMapping struct {
	Domain       string `json:"domain"`
	PrimaryIssue string `json:"primary_issue"`
	// PrimarySections is keyed by act.
	PrimarySections map[string][]Section `json:"primary_sections"`
	// ActNotes holds the free-text note of every act that matched.
	ActNotes map[string]string `json:"act_notes,omitempty"`
	// SecondarySections is keyed by issue, then act.
	SecondarySections map[string]map[string][]Section `json:"secondary_sections"`
	AllSections       []SectionRecord                 `json:"all_sections"`
	Summary           SectionSummary                  `json:"summary"`
	Error             string                          `json:"error,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Evidence
// ─────────────────────────────────────────────────────────────────────────────

// Position is a byte span in the source text.
type Position struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Span carries the fields shared by every evidence entry.
type Span struct {
	Type     string   `json:"type"`
	Context  string   `json:"context"`
	Position Position `json:"position"`
}

// Witness is a PERSON mention with its witness classification.
type Witness struct {
	Name string `json:"name"`
	Span
	IsWitness bool `json:"is_witness"`
}

// DocumentRef is a referenced document or piece of evidence.
type DocumentRef struct {
	Reference string `json:"reference"`
	Span
}

// DateMention is a date found in the text.
type DateMention struct {
	Date string `json:"date"`
	Span
}

// LocationMention is a place found in the text. Type is the lower-cased
// entity label (gpe, loc, fac).
type LocationMention struct {
	Location string `json:"location"`
	Span
}

// MoneyMention is a monetary amount found in the text.
type MoneyMention struct {
	Amount string `json:"amount"`
	Span
}

// EvidenceSummary counts the bundle contents.
type EvidenceSummary struct {
	TotalWitnesses     int `json:"total_witnesses"`
	ConfirmedWitnesses int `json:"confirmed_witnesses"`
	TotalDocuments     int `json:"total_documents"`
	TotalDates         int `json:"total_dates"`
	TotalLocations     int `json:"total_locations"`
	TotalMoney         int `json:"total_money"`
	TextLength         int `json:"text_length"`
}

// EvidenceBundle is the output of the evidence extractor. Every slice keeps
// first-seen order.
type EvidenceBundle struct {
	Witnesses []Witness         `json:"witnesses"`
	Documents []DocumentRef     `json:"documents"`
	Dates     []DateMention     `json:"dates"`
	Locations []LocationMention `json:"locations"`
	Money     []MoneyMention    `json:"money"`
	Summary   EvidenceSummary   `json:"summary"`
	Error     string            `json:"error,omitempty"`
}

// ConfirmedWitnesses returns the witnesses flagged by a witness keyword.
func (b EvidenceBundle) ConfirmedWitnesses() []Witness {
	out := make([]Witness, 0, len(b.Witnesses))
	for _, w := range b.Witnesses {
		if w.IsWitness {
			out = append(out, w)
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Advisory
// ─────────────────────────────────────────────────────────────────────────────

// GeneralDomain is reported when advisory classification fails.
const GeneralDomain = "General"

// DomainScore pairs a domain with its similarity.
type DomainScore struct {
	Domain     string  `json:"domain"`
	Confidence float64 `json:"confidence"`
}

// AdvisoryClassification is the output of the advisory domain classifier.
type AdvisoryClassification struct {
	Domain           string        `json:"domain"`
	Confidence       float64       `json:"confidence"`
	SecondaryDomains []string      `json:"secondary_domains"`
	AllPredictions   []DomainScore `json:"all_predictions"`
	Error            string        `json:"error,omitempty"`
}

// RetrievedChunk is one knowledge-base hit.
type RetrievedChunk struct {
	ID       string                 `json:"id,omitempty"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
	Distance float64                `json:"distance"`
}

// Source returns the "source" metadata value, or "" when absent.
func (c RetrievedChunk) Source() string {
	if s, ok := c.Metadata["source"].(string); ok {
		return s
	}
	return ""
}

// ─────────────────────────────────────────────────────────────────────────────
// Collaborator records
// ─────────────────────────────────────────────────────────────────────────────

// DocumentText is what document intake returns for one file.
type DocumentText struct {
	Text      string `json:"text"`
	Method    string `json:"method"`
	Language  string `json:"language"`
	CharCount int    `json:"char_count"`
	Filename  string `json:"filename"`
	Error     string `json:"error,omitempty"`
}

// LanguageDetection is the normalizer's language guess.
type LanguageDetection struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// Translation describes whether text was translated.
type Translation struct {
	Translated     bool   `json:"translated"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	Note           string `json:"note,omitempty"`
}

// Cleaning reports the cleaning step.
type Cleaning struct {
	OriginalLength int `json:"original_length"`
	CleanedLength  int `json:"cleaned_length"`
}

// NormalizedText is what the normalizer returns.
type NormalizedText struct {
	OriginalText      string            `json:"original_text"`
	CleanedText       string            `json:"cleaned_text"`
	Steps             []string          `json:"steps"`
	LanguageDetection LanguageDetection `json:"language_detection"`
	Translation       Translation       `json:"translation"`
	Cleaning          Cleaning          `json:"cleaning"`
	FinalLength       int               `json:"final_length"`
	Error             string            `json:"error,omitempty"`
}

// Analysis methods reported by reasoning providers.
const (
	AnalysisMethodLLM      = "gemini_api"
	AnalysisMethodNoAPI    = "no_api"
	AnalysisMethodTemplate = "fallback_template"
)

// Analysis is the reasoning provider's output.
type Analysis struct {
	Analysis         string    `json:"analysis"`
	Method           string    `json:"method"`
	Model            string    `json:"model_used,omitempty"`
	SectionsAnalyzed int       `json:"sections_analyzed,omitempty"`
	ReferencesUsed   int       `json:"references_used,omitempty"`
	GeneratedAt      time.Time `json:"generated_at"`
	Error            string    `json:"error,omitempty"`
}

// CaseFacts is the input to case reasoning and case reports.
type CaseFacts struct {
	CaseID         string               `json:"case_id"`
	CaseTitle      string               `json:"case_title"`
	Facts          string               `json:"facts"`
	Classification ClassificationResult `json:"classification"`
	Sections       SectionMapping       `json:"sections"`
	Evidence       EvidenceBundle       `json:"evidence"`
}

// AdvisoryFacts is the input to advisory reasoning and advisory reports.
type AdvisoryFacts struct {
	CaseID         string                 `json:"case_id"`
	CaseTitle      string                 `json:"case_title"`
	Objective      string                 `json:"objective"`
	Background     string                 `json:"background"`
	Classification AdvisoryClassification `json:"classification"`
	References     []RetrievedChunk       `json:"references"`
}

// ReportArtifact lists the files a report render produced.
type ReportArtifact struct {
	CaseID        string    `json:"case_id"`
	PDFPath       string    `json:"pdf_path,omitempty"`
	MarkdownPath  string    `json:"markdown_path"`
	CaseDirectory string    `json:"case_directory"`
	GeneratedAt   time.Time `json:"generated_at"`
	ObjectKeys    []string  `json:"object_keys,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Pipeline result
// ─────────────────────────────────────────────────────────────────────────────

// Stage names a pipeline step.
type Stage string

const (
	StageUpload         Stage = "upload"
	StageDocuments      Stage = "documents"
	StagePreprocess     Stage = "preprocess"
	StageClassification Stage = "classification"
	StageSections       Stage = "sections"
	StageEvidence       Stage = "evidence"
	StageRetrieval      Stage = "rag_retrieval"
	StageAnalysis       Stage = "analysis"
	StageReport         Stage = "report"
)

// PipelineStatus is the terminal state of a pipeline.
type PipelineStatus string

const (
	StatusSuccess PipelineStatus = "success"
	StatusError   PipelineStatus = "error"
)

// PipelineResult accumulates stage outputs for one pipeline invocation. It is
// owned by that invocation and never shared.
type PipelineResult struct {
	CaseTitle   string                `json:"case_title,omitempty"`
	CaseType    string                `json:"case_type,omitempty"`
	CaseID      string                `json:"case_id,omitempty"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	Steps       map[Stage]interface{} `json:"steps,omitempty"`
	CompletedAt time.Time             `json:"completed_at"`
	Status      PipelineStatus        `json:"status"`
	PDFPath     string                `json:"pdf_path,omitempty"`
	Summary     interface{}           `json:"summary,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// NewPipelineResult starts an accumulator.
func NewPipelineResult(title, caseType string, startedAt time.Time) *PipelineResult {
	return &PipelineResult{
		CaseTitle: title,
		CaseType:  caseType,
		StartedAt: &startedAt,
		Steps:     make(map[Stage]interface{}),
	}
}

// Record stores a stage output.
func (r *PipelineResult) Record(stage Stage, output interface{}) {
	r.Steps[stage] = output
}

// Complete marks the result successful.
func (r *PipelineResult) Complete(at time.Time) {
	r.CompletedAt = at
	r.Status = StatusSuccess
}

// Failed returns the error shape of r: only status, error, completion time and
// (when set) case type survive. Completed steps are discarded.
func (r *PipelineResult) Failed(err error, at time.Time) *PipelineResult {
	return &PipelineResult{
		CaseType:    r.CaseType,
		Status:      StatusError,
		Error:       err.Error(),
		CompletedAt: at,
	}
}

// CaseSummary is the summary block of a successful case pipeline.
type CaseSummary struct {
	Domain          string `json:"domain"`
	PrimaryIssue    string `json:"primary_issue"`
	SectionsCount   int    `json:"sections_count"`
	WitnessesCount  int    `json:"witnesses_count"`
	DocumentsCount  int    `json:"documents_count"`
	ReportObjectKey string `json:"report_object_key,omitempty"`
}

// AdvisorySummary is the summary block of a successful advisory pipeline.
type AdvisorySummary struct {
	Domain             string  `json:"domain"`
	Confidence         float64 `json:"confidence"`
	DocumentsProcessed int     `json:"documents_processed"`
	KnowledgeSources   int     `json:"knowledge_sources"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Knowledge registry
// ─────────────────────────────────────────────────────────────────────────────

// KnowledgeSource records one document ingested into a domain collection.
// (Domain, Source) is unique; re-ingesting a source replaces its row.
type KnowledgeSource struct {
	ID          uuid.UUID              `json:"id"`
	Domain      string                 `json:"domain"`
	Source      string                 `json:"source"`
	Collection  string                 `json:"collection"`
	ChunkCount  int                    `json:"chunk_count"`
	ContentHash string                 `json:"content_hash"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	IngestedAt  time.Time              `json:"ingested_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// DomainCount is a per-domain tally of registered sources and chunks.
type DomainCount struct {
	Domain  string `json:"domain"`
	Sources int    `json:"sources"`
	Chunks  int    `json:"chunks"`
}
