// Package evidence pulls witnesses, documents, dates, places and amounts out
// of a narrative by combining one named-entity pass with regex families.
package evidence

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/turtacn/LegalLens/internal/intelligence/ner"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

// contextRadius is the number of bytes kept on each side of a match.
const contextRadius = 50

// Extractor builds an EvidenceBundle from text. It never returns an error;
// failures are reported in EvidenceBundle.Error.
type Extractor interface {
	Extract(ctx context.Context, text string) legal.EvidenceBundle
}

// PatternExtractor is the default Extractor. Without a recognizer only the
// regex families run, so witnesses and locations stay empty.
type PatternExtractor struct {
	recognizer ner.Recognizer
	metrics    *prometheus.AppMetrics
	logger     logging.Logger
}

func NewPatternExtractor(recognizer ner.Recognizer, metrics *prometheus.AppMetrics, log logging.Logger) *PatternExtractor {
	if metrics == nil {
		metrics = prometheus.NewNoopAppMetrics()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &PatternExtractor{recognizer: recognizer, metrics: metrics, logger: log.Named("evidence")}
}

func (e *PatternExtractor) Extract(ctx context.Context, text string) (bundle legal.EvidenceBundle) {
	defer func() {
		if r := recover(); r != nil {
			bundle = failed(fmt.Errorf("evidence extraction panic: %v", r))
			e.logger.Error("evidence extraction failed", logging.String("error", bundle.Error))
		}
	}()

	e.logger.Info("extracting evidence", logging.Int("chars", len(text)))

	var ents []ner.Entity
	if e.recognizer != nil {
		var err error
		ents, err = e.recognizer.Recognize(ctx, text)
		if err != nil {
			wrapped := errors.Wrap(err, errors.ErrCodeRecognizerFailed, "entity recognition failed")
			e.logger.Error("evidence extraction failed", logging.Err(wrapped))
			return failed(wrapped)
		}
	}

	bundle = legal.EvidenceBundle{
		Witnesses: extractWitnesses(text, ents),
		Documents: extractDocuments(text),
		Dates:     extractDates(text, ents),
		Locations: extractLocations(text, ents),
		Money:     extractMoney(text, ents),
	}
	bundle.Summary = legal.EvidenceSummary{
		TotalWitnesses:     len(bundle.Witnesses),
		ConfirmedWitnesses: len(bundle.ConfirmedWitnesses()),
		TotalDocuments:     len(bundle.Documents),
		TotalDates:         len(bundle.Dates),
		TotalLocations:     len(bundle.Locations),
		TotalMoney:         len(bundle.Money),
		TextLength:         len(text),
	}

	e.metrics.RecordEvidence("witness", bundle.Summary.TotalWitnesses)
	e.metrics.RecordEvidence("document", bundle.Summary.TotalDocuments)
	e.metrics.RecordEvidence("date", bundle.Summary.TotalDates)
	e.metrics.RecordEvidence("location", bundle.Summary.TotalLocations)
	e.metrics.RecordEvidence("money", bundle.Summary.TotalMoney)
	e.logger.Info("evidence extraction complete",
		logging.Int("witnesses", bundle.Summary.TotalWitnesses),
		logging.Int("documents", bundle.Summary.TotalDocuments),
		logging.Int("dates", bundle.Summary.TotalDates))
	return bundle
}

func failed(err error) legal.EvidenceBundle {
	return legal.EvidenceBundle{
		Witnesses: []legal.Witness{},
		Documents: []legal.DocumentRef{},
		Dates:     []legal.DateMention{},
		Locations: []legal.LocationMention{},
		Money:     []legal.MoneyMention{},
		Error:     err.Error(),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Per-kind extraction
// ─────────────────────────────────────────────────────────────────────────────

func extractWitnesses(text string, ents []ner.Entity) []legal.Witness {
	out := []legal.Witness{}
	for _, ent := range ents {
		if ent.Label != ner.LabelPerson {
			continue
		}
		sp := newSpan("person", text, ent.Start, ent.End)
		isWitness := false
		lower := strings.ToLower(sp.Context)
		for _, kw := range witnessKeywords {
			if strings.Contains(lower, kw) {
				isWitness = true
				sp.Type = kw
				break
			}
		}
		out = append(out, legal.Witness{Name: ent.Text, Span: sp, IsWitness: isWitness})
	}
	return out
}

func extractDocuments(text string) []legal.DocumentRef {
	out := []legal.DocumentRef{}
	seen := make(map[string]bool)
	add := func(typ string, start, end int) {
		ref := text[start:end]
		if seen[ref] {
			return
		}
		seen[ref] = true
		out = append(out, legal.DocumentRef{Reference: ref, Span: newSpan(typ, text, start, end)})
	}
	for _, re := range documentPatterns {
		for _, m := range re.FindAllStringIndex(text, -1) {
			add("document", m[0], m[1])
		}
	}
	for _, kp := range documentKeywordPatterns {
		for _, m := range kp.re.FindAllStringIndex(text, -1) {
			add(kp.keyword, m[0], m[1])
		}
	}
	return out
}

func extractDates(text string, ents []ner.Entity) []legal.DateMention {
	out := []legal.DateMention{}
	seen := make(map[string]bool)
	add := func(start, end int) {
		lit := text[start:end]
		if seen[lit] {
			return
		}
		seen[lit] = true
		out = append(out, legal.DateMention{Date: lit, Span: newSpan("date", text, start, end)})
	}
	for _, ent := range ents {
		if ent.Label == ner.LabelDate {
			add(ent.Start, ent.End)
		}
	}
	for _, re := range datePatterns {
		for _, m := range re.FindAllStringIndex(text, -1) {
			add(m[0], m[1])
		}
	}
	return out
}

func extractLocations(text string, ents []ner.Entity) []legal.LocationMention {
	out := []legal.LocationMention{}
	seen := make(map[string]bool)
	for _, ent := range ents {
		if !ner.IsLocation(ent.Label) || seen[ent.Text] {
			continue
		}
		seen[ent.Text] = true
		out = append(out, legal.LocationMention{
			Location: ent.Text,
			Span:     newSpan(strings.ToLower(ent.Label), text, ent.Start, ent.End),
		})
	}
	return out
}

func extractMoney(text string, ents []ner.Entity) []legal.MoneyMention {
	out := []legal.MoneyMention{}
	seen := make(map[string]bool)
	add := func(start, end int) {
		lit := text[start:end]
		if seen[lit] {
			return
		}
		seen[lit] = true
		out = append(out, legal.MoneyMention{Amount: lit, Span: newSpan("money", text, start, end)})
	}
	for _, ent := range ents {
		if ent.Label == ner.LabelMoney {
			add(ent.Start, ent.End)
		}
	}
	for _, re := range moneyPatterns {
		for _, m := range re.FindAllStringIndex(text, -1) {
			add(m[0], m[1])
		}
	}
	return out
}

// newSpan records [start, end) with a trimmed window of contextRadius bytes
// on each side, widened to rune boundaries.
func newSpan(typ, text string, start, end int) legal.Span {
	from := start - contextRadius
	if from < 0 {
		from = 0
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	to := end + contextRadius
	if to > len(text) {
		to = len(text)
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return legal.Span{
		Type:     typ,
		Context:  strings.TrimSpace(text[from:to]),
		Position: legal.Position{Start: start, End: end},
	}
}
