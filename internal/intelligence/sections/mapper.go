// Package sections maps legal issues to statutory sections of the Indian
// penal, procedural and IT statutes.
package sections

import (
	"fmt"
	"sort"
	"strings"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

// Routing decides which acts are consulted for a domain.
var (
	cyberActs    = []string{"IT_ACT", "IPC", "BNS"}
	criminalActs = []string{"IPC", "BNS", "CrPC"}
	defaultActs  = []string{"IPC", "BNS"}
)

// ActsFor returns the acts consulted for domain.
func ActsFor(domain string) []string {
	var acts []string
	switch domain {
	case "Cyber":
		acts = cyberActs
	case "Criminal", "Family":
		acts = criminalActs
	default:
		acts = defaultActs
	}
	return append([]string(nil), acts...)
}

// Mapper looks up sections for issues. It is safe for concurrent use.
type Mapper struct {
	table   *Table
	metrics *prometheus.AppMetrics
	logger  logging.Logger
}

// NewMapper uses the embedded table.
func NewMapper(metrics *prometheus.AppMetrics, log logging.Logger) (*Mapper, error) {
	t, err := DefaultTable()
	if err != nil {
		return nil, err
	}
	return NewMapperWithTable(t, metrics, log), nil
}

// NewMapperFromFile uses an operator-supplied table.
func NewMapperFromFile(path string, metrics *prometheus.AppMetrics, log logging.Logger) (*Mapper, error) {
	t, err := LoadTable(path)
	if err != nil {
		return nil, err
	}
	return NewMapperWithTable(t, metrics, log), nil
}

func NewMapperWithTable(t *Table, metrics *prometheus.AppMetrics, log logging.Logger) *Mapper {
	if metrics == nil {
		metrics = prometheus.NewNoopAppMetrics()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	m := &Mapper{table: t, metrics: metrics, logger: log.Named("section-mapper")}
	if t != nil {
		m.logger.Info("loaded sections table", logging.Strings("acts", t.Acts()))
	}
	return m
}

// lookup is one act's answer for an issue.
type lookup struct {
	act      string
	sections []legal.Section
}

// sectionsForIssue checks each act in order: the exact issue key first,
// then the first key (in table order) that contains or is contained in the
// issue, case-insensitively. Acts without a hit are omitted.
func (m *Mapper) sectionsForIssue(issue string, acts []string) []lookup {
	var out []lookup
	lowerIssue := strings.ToLower(issue)
	for _, name := range acts {
		a, ok := m.table.index[name]
		if !ok {
			continue
		}
		if i, ok := a.index[issue]; ok {
			out = append(out, lookup{act: name, sections: a.issues[i].sections})
			continue
		}
		for _, e := range a.issues {
			lowerKey := strings.ToLower(e.key)
			if strings.Contains(lowerKey, lowerIssue) || strings.Contains(lowerIssue, lowerKey) {
				out = append(out, lookup{act: name, sections: e.sections})
				break
			}
		}
	}
	return out
}

// MapSections resolves the primary and secondary issues against the acts
// routed for domain. It never returns an error; failures set Error and
// leave AllSections empty.
func (m *Mapper) MapSections(domain, primaryIssue string, secondaryIssues []string) (result legal.SectionMapping) {
	defer func() {
		if r := recover(); r != nil {
			result = m.failed(domain, primaryIssue, fmt.Errorf("section mapping panic: %v", r))
		}
	}()
	if m.table == nil {
		return m.failed(domain, primaryIssue, errors.New(errors.ErrCodeSectionTableInvalid, "sections table not loaded"))
	}

	m.logger.Info("mapping sections", logging.String("domain", domain), logging.String("issue", primaryIssue))

	acts := ActsFor(domain)
	result = legal.SectionMapping{
		Domain:            domain,
		PrimaryIssue:      primaryIssue,
		PrimarySections:   make(map[string][]legal.Section),
		SecondarySections: make(map[string]map[string][]legal.Section),
		AllSections:       []legal.SectionRecord{},
	}

	for _, name := range acts {
		if a, ok := m.table.index[name]; ok && a.note != "" {
			if result.ActNotes == nil {
				result.ActNotes = make(map[string]string)
			}
			result.ActNotes[name] = a.note
		}
	}

	for _, hit := range m.sectionsForIssue(primaryIssue, acts) {
		result.PrimarySections[hit.act] = hit.sections
		result.AllSections = appendRecords(result.AllSections, hit, primaryIssue, legal.SectionPrimary)
	}

	for _, issue := range secondaryIssues {
		byAct := make(map[string][]legal.Section)
		for _, hit := range m.sectionsForIssue(issue, acts) {
			byAct[hit.act] = hit.sections
			result.AllSections = appendRecords(result.AllSections, hit, issue, legal.SectionSecondary)
		}
		result.SecondarySections[issue] = byAct
	}

	result.Summary = summarize(result.AllSections)
	m.metrics.RecordSections(domain, result.Summary.TotalSections)
	m.logger.Info("mapped sections", logging.Int("count", result.Summary.TotalSections))
	return result
}

func (m *Mapper) failed(domain, issue string, err error) legal.SectionMapping {
	m.logger.Error("section mapping failed", logging.Err(err))
	return legal.SectionMapping{
		Domain:       domain,
		PrimaryIssue: issue,
		AllSections:  []legal.SectionRecord{},
		Summary:      legal.SectionSummary{ActsCovered: []string{}},
		Error:        err.Error(),
	}
}

func appendRecords(out []legal.SectionRecord, hit lookup, issue string, typ legal.SectionType) []legal.SectionRecord {
	for _, s := range hit.sections {
		out = append(out, legal.SectionRecord{Act: hit.act, Issue: issue, Type: typ, Section: s})
	}
	return out
}

func summarize(records []legal.SectionRecord) legal.SectionSummary {
	sum := legal.SectionSummary{TotalSections: len(records), ActsCovered: []string{}}
	seen := make(map[string]bool)
	for _, r := range records {
		if !seen[r.Act] {
			seen[r.Act] = true
			sum.ActsCovered = append(sum.ActsCovered, r.Act)
		}
		if r.Type == legal.SectionPrimary {
			sum.PrimarySectionsCount++
		} else {
			sum.SecondarySectionsCount++
		}
	}
	sort.Strings(sum.ActsCovered)
	return sum
}

// ─────────────────────────────────────────────────────────────────────────────
// Lookup helpers
// ─────────────────────────────────────────────────────────────────────────────

// SectionDetails returns the first section numbered number in act, tagged
// with the issue it is filed under.
func (m *Mapper) SectionDetails(actName, number string) (legal.SectionRecord, error) {
	if m.table == nil {
		return legal.SectionRecord{}, errors.New(errors.ErrCodeSectionTableInvalid, "sections table not loaded")
	}
	a, ok := m.table.index[actName]
	if !ok {
		return legal.SectionRecord{}, errors.Newf(errors.ErrCodeActUnknown, "unknown act %q", actName)
	}
	for _, e := range a.issues {
		for _, s := range e.sections {
			if s.Section == number {
				return legal.SectionRecord{Act: actName, Issue: e.key, Section: s}, nil
			}
		}
	}
	return legal.SectionRecord{}, errors.Newf(errors.ErrCodeSectionNotFound, "section %s not found in %s", number, actName)
}

// Search returns every section whose title or description contains query
// case-insensitively, or whose number contains it, in table order.
func (m *Mapper) Search(query string) []legal.SectionRecord {
	out := []legal.SectionRecord{}
	if m.table == nil {
		return out
	}
	q := strings.ToLower(query)
	for _, a := range m.table.acts {
		for _, e := range a.issues {
			for _, s := range e.sections {
				if strings.Contains(strings.ToLower(s.Title), q) ||
					strings.Contains(strings.ToLower(s.Description), q) ||
					strings.Contains(strings.ToLower(s.Section), q) {
					out = append(out, legal.SectionRecord{Act: a.name, Issue: e.key, Section: s})
				}
			}
		}
	}
	m.logger.Debug("section search", logging.String("query", query), logging.Int("matches", len(out)))
	return out
}
