package ner

import (
	"context"
	"regexp"
	"strings"
)

// capRun matches one to three capitalized words ("Ramesh", "Priya Kumar",
// "MG Road").
const capRun = `[A-Z][A-Za-z]+(?:[ \t]+[A-Z][A-Za-z]+){0,2}`

var (
	// Person cues: a role keyword, an honorific, or a following speech verb.
	personAfterRole  = regexp.MustCompile(`(?i:\b(?:witness(?:es)?|complainant|informant|accused|victim|eyewitness))[,:]?[ \t]+(` + capRun + `)`)
	personAfterTitle = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr|Shri|Smt|Sri|Kumari)\.?[ \t]+(` + capRun + `)`)
	personBeforeVerb = regexp.MustCompile(`\b(` + capRun + `),?[ \t]+(?:saw|testified|stated|said|observed|deposed|declared|confirmed|told|witnessed)\b`)

	// Place cue: a locative preposition followed by a capitalized run.
	placeAfterPrep = regexp.MustCompile(`\b(?:at|in|near|from|outside|inside)[ \t]+((?:[A-Z][A-Za-z]*[ \t]+){0,3}[A-Z][A-Za-z]+)`)
	placeTrailing  = regexp.MustCompile(`^,[ \t]*([A-Z][a-z]+)\b`)

	monthNames = `(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|June?|July?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)`
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{1,2}(?:st|nd|rd|th)?[ \t]+(?:of[ \t]+)?` + monthNames + `,?[ \t]+\d{4}\b`),
		regexp.MustCompile(`\b` + monthNames + `[ \t]+\d{1,2}(?:st|nd|rd|th)?,?[ \t]+\d{4}\b`),
		regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`),
		regexp.MustCompile(`\b\d{4}[/-]\d{1,2}[/-]\d{1,2}\b`),
	}

	moneyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:Rs\.?|INR|₹)[ \t]*\d[\d,]*(?:\.\d+)?`),
		regexp.MustCompile(`\b\d[\d,]*(?:\.\d+)?[ \t]+(?:rupees|lakhs?|crores?)\b`),
	}
)

var facilitySuffixes = map[string]bool{
	"Road": true, "Rd": true, "Street": true, "St": true, "Lane": true, "Nagar": true,
	"Station": true, "Market": true, "Mall": true, "Hospital": true, "Court": true,
	"Bridge": true, "Colony": true, "Building": true, "Tower": true, "Park": true,
	"Avenue": true, "Marg": true, "Chowk": true, "Bazaar": true, "Complex": true,
	"Apartment": true, "Apartments": true, "Layout": true,
}

// nonNames are capitalized words that begin sentences or name roles rather
// than people or places.
var nonNames = map[string]bool{
	"He": true, "She": true, "They": true, "I": true, "We": true, "You": true, "It": true,
	"The": true, "This": true, "That": true, "These": true, "Those": true, "There": true,
	"His": true, "Her": true, "Their": true, "My": true, "Our": true, "Another": true,
	"Witness": true, "Police": true, "Accused": true, "Victim": true, "Complainant": true,
	"Court": true, "When": true, "Then": true, "After": true, "Before": true, "On": true,
	"Monday": true, "Tuesday": true, "Wednesday": true, "Thursday": true, "Friday": true,
	"Saturday": true, "Sunday": true, "CCTV": true, "FIR": true, "SMS": true, "WhatsApp": true,
	"January": true, "February": true, "March": true, "April": true, "May": true, "June": true,
	"July": true, "August": true, "September": true, "October": true, "November": true,
	"December": true, "Jan": true, "Feb": true, "Mar": true, "Apr": true, "Jun": true,
	"Jul": true, "Aug": true, "Sep": true, "Sept": true, "Oct": true, "Nov": true, "Dec": true,
	"Rs": true, "INR": true,
}

// RuleRecognizer is a deterministic recognizer built from lexical cues. It
// needs no model and is used when no model backend is configured.
type RuleRecognizer struct{}

// NewRuleRecognizer returns a RuleRecognizer.
func NewRuleRecognizer() *RuleRecognizer { return &RuleRecognizer{} }

func (r *RuleRecognizer) Name() string { return "rules" }

// Recognize never fails; the error return satisfies Recognizer.
func (r *RuleRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ents []Entity

	// Money and dates first: they win overlaps at equal starts only when
	// longer, and are never re-labelled as names.
	for _, re := range moneyPatterns {
		for _, m := range re.FindAllStringIndex(text, -1) {
			ents = append(ents, span(text, m[0], m[1], LabelMoney))
		}
	}
	for _, re := range datePatterns {
		for _, m := range re.FindAllStringIndex(text, -1) {
			ents = append(ents, span(text, m[0], m[1], LabelDate))
		}
	}

	persons := make(map[string]bool)
	for _, re := range []*regexp.Regexp{personAfterRole, personAfterTitle, personBeforeVerb} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			start, end, ok := trimNonNames(text, m[2], m[3])
			if !ok {
				continue
			}
			ents = append(ents, span(text, start, end, LabelPerson))
			persons[text[start:end]] = true
		}
	}

	for _, m := range placeAfterPrep.FindAllStringSubmatchIndex(text, -1) {
		start, end, ok := trimNonNames(text, m[2], m[3])
		if !ok || persons[text[start:end]] {
			continue
		}
		ents = append(ents, span(text, start, end, placeLabel(text[start:end])))

		// "at MG Road, Bangalore": the trailing capitalized word is the city.
		if tm := placeTrailing.FindStringSubmatchIndex(text[end:]); tm != nil {
			ts, te := end+tm[2], end+tm[3]
			if !nonNames[text[ts:te]] {
				ents = append(ents, span(text, ts, te, LabelGPE))
			}
		}
	}

	return resolveOverlaps(ents), nil
}

func span(text string, start, end int, label string) Entity {
	return Entity{Text: text[start:end], Label: label, Start: start, End: end, Score: 1}
}

// trimNonNames drops leading and trailing stop words from the run
// text[start:end]. It reports false when nothing is left.
func trimNonNames(text string, start, end int) (int, int, bool) {
	words := strings.Fields(text[start:end])
	lo, hi := 0, len(words)
	for lo < hi && nonNames[words[lo]] {
		lo++
	}
	for hi > lo && nonNames[words[hi-1]] {
		hi--
	}
	if lo == hi {
		return 0, 0, false
	}
	// Recover byte offsets of the surviving words.
	off := start
	var s, e int
	for i, w := range words {
		idx := strings.Index(text[off:end], w)
		ws := off + idx
		we := ws + len(w)
		if i == lo {
			s = ws
		}
		if i == hi-1 {
			e = we
		}
		off = we
	}
	return s, e, true
}

func placeLabel(run string) string {
	words := strings.Fields(run)
	if facilitySuffixes[words[len(words)-1]] {
		return LabelFac
	}
	if len(words) == 1 {
		return LabelGPE
	}
	return LabelLoc
}
