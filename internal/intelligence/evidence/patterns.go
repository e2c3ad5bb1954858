package evidence

import (
	"regexp"
)

// witnessKeywords are checked in order; the first one found in a person's
// context window becomes the witness type.
var witnessKeywords = []string{
	"witness", "witnesses", "saw", "observed", "testified",
	"deposed", "stated", "declared", "affirmed", "confirmed",
	"complainant", "informant", "victim", "accused",
}

var documentKeywords = []string{
	"document", "documents", "evidence", "proof", "certificate",
	"receipt", "invoice", "contract", "agreement", "deed",
	"statement", "affidavit", "report", "record", "file",
	"email", "letter", "message", "sms", "whatsapp",
	"photograph", "photo", "video", "cctv", "recording",
}

var (
	documentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:document|evidence|exhibit)\s+(?:no\.?|number)?\s*([A-Z0-9\-/]+)`),
		regexp.MustCompile(`(?i)(?:receipt|invoice|bill)\s+(?:no\.?|number)?\s*([A-Z0-9\-/]+)`),
		regexp.MustCompile(`(?i)(?:email|letter)\s+dated\s+([0-9]{1,2}[/-][0-9]{1,2}[/-][0-9]{2,4})`),
		regexp.MustCompile(`(?i)(CCTV\s+footage|video\s+recording|photograph)`),
		regexp.MustCompile(`(?i)(WhatsApp\s+chat|SMS|text\s+message)`),
	}

	// documentKeywordPatterns holds `\b{kw}s?\b` per keyword, in keyword order.
	documentKeywordPatterns = compileKeywordPatterns(documentKeywords)

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`),
		regexp.MustCompile(`(?i)\b\d{4}[/-]\d{1,2}[/-]\d{1,2}\b`),
		regexp.MustCompile(`(?i)\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s+\d{4}\b`),
	}

	moneyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Rs\.?\s*\d+(?:,\d+)*(?:\.\d+)?`),
		regexp.MustCompile(`(?i)INR\s*\d+(?:,\d+)*(?:\.\d+)?`),
		regexp.MustCompile(`₹\s*\d+(?:,\d+)*(?:\.\d+)?`),
	}
)

type keywordPattern struct {
	keyword string
	re      *regexp.Regexp
}

func compileKeywordPatterns(keywords []string) []keywordPattern {
	out := make([]keywordPattern, len(keywords))
	for i, kw := range keywords {
		out[i] = keywordPattern{keyword: kw, re: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `s?\b`)}
	}
	return out
}
