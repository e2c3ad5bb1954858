// Package ner recognizes the named entities evidence extraction needs:
// people, dates, places and monetary amounts.
package ner

import (
	"context"
	"sort"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
)

// Entity labels.
const (
	LabelPerson = "PERSON"
	LabelDate   = "DATE"
	LabelGPE    = "GPE"
	LabelLoc    = "LOC"
	LabelFac    = "FAC"
	LabelMoney  = "MONEY"
)

// Entity is one recognized span. Start and End are byte offsets into the
// text passed to Recognize and Text == text[Start:End].
type Entity struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score"`
}

// Recognizer runs one entity-recognition pass over a text.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Entity, error)
	Name() string
}

// IsLocation reports whether label is one of the place labels.
func IsLocation(label string) bool {
	return label == LabelGPE || label == LabelLoc || label == LabelFac
}

// resolveOverlaps orders entities by start offset and drops any entity that
// overlaps one already kept. At equal starts the longer span wins.
func resolveOverlaps(ents []Entity) []Entity {
	sort.SliceStable(ents, func(i, j int) bool {
		if ents[i].Start != ents[j].Start {
			return ents[i].Start < ents[j].Start
		}
		return ents[i].End > ents[j].End
	})
	out := make([]Entity, 0, len(ents))
	lastEnd := -1
	for _, e := range ents {
		if e.Start < lastEnd {
			continue
		}
		out = append(out, e)
		lastEnd = e.End
	}
	return out
}

// ---------------------------------------------------------------------------
// Fallback chain
// ---------------------------------------------------------------------------

type fallbackRecognizer struct {
	primary  Recognizer
	fallback Recognizer
	logger   logging.Logger
}

// WithFallback returns a Recognizer that uses primary and switches to
// fallback for any call where primary fails.
func WithFallback(primary, fallback Recognizer, logger logging.Logger) Recognizer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &fallbackRecognizer{primary: primary, fallback: fallback, logger: logger}
}

func (f *fallbackRecognizer) Name() string {
	return f.primary.Name() + "+" + f.fallback.Name()
}

func (f *fallbackRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	ents, err := f.primary.Recognize(ctx, text)
	if err == nil {
		return ents, nil
	}
	f.logger.Warn("primary recognizer failed, using fallback",
		logging.String("primary", f.primary.Name()),
		logging.String("fallback", f.fallback.Name()),
		logging.Err(err))
	return f.fallback.Recognize(ctx, text)
}
