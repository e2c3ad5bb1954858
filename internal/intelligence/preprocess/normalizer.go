// Package preprocess normalizes narrative text before analysis: it guesses the
// language, optionally translates to English and strips characters the
// downstream matchers do not expect.
package preprocess

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

const (
	StepLanguageDetection = "language_detection"
	StepTranslation       = "translation"
	StepCleaning          = "cleaning"

	// UnknownLanguage is reported for short or undetectable text.
	UnknownLanguage = "unknown"
	english         = "en"

	minDetectableLength = 10

	// ErrNoText is reported in NormalizedText.Error for blank input.
	ErrNoText = "no text to process"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	// Letters, digits, marks, underscore, whitespace and legal punctuation
	// survive.
	disallowedChars = regexp.MustCompile(`[^\p{L}\p{N}\p{M}_\s.,;:()\-"'/]`)
	dotRun          = regexp.MustCompile(`\.{2,}`)
)

// Translator renders text in English.
type Translator interface {
	Translate(ctx context.Context, text, sourceLanguage string) (string, error)
}

// Options selects the optional steps.
type Options struct {
	Translate bool
	Clean     bool
}

// Normalizer prepares raw narrative text for the classifiers.
type Normalizer interface {
	Process(ctx context.Context, text string, opts Options) legal.NormalizedText
}

// TextNormalizer is the default Normalizer. The translator may be nil.
type TextNormalizer struct {
	translator Translator
	logger     logging.Logger
}

func NewTextNormalizer(translator Translator, log logging.Logger) *TextNormalizer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &TextNormalizer{translator: translator, logger: log.Named("normalizer")}
}

// Process runs language detection, then translation and cleaning when
// requested. CleanedText always holds the final text, even when no optional
// step ran.
func (n *TextNormalizer) Process(ctx context.Context, text string, opts Options) legal.NormalizedText {
	out := legal.NormalizedText{
		OriginalText: text,
		Steps:        []string{StepLanguageDetection},
	}

	out.LanguageDetection = DetectLanguage(text)
	lang := out.LanguageDetection.Language
	processed := text

	if opts.Translate && lang != english {
		out.Translation, processed = n.translate(ctx, text, lang)
		out.Steps = append(out.Steps, StepTranslation)
	} else {
		note := "not_requested"
		if lang == english {
			note = "already_english"
		}
		out.Translation = legal.Translation{SourceLanguage: lang, TargetLanguage: english, Note: note}
	}

	if opts.Clean {
		cleaned := Clean(processed)
		out.Cleaning = legal.Cleaning{
			OriginalLength: utf8.RuneCountInString(processed),
			CleanedLength:  utf8.RuneCountInString(cleaned),
		}
		processed = cleaned
		out.Steps = append(out.Steps, StepCleaning)
	}

	out.CleanedText = processed
	out.FinalLength = utf8.RuneCountInString(processed)
	if strings.TrimSpace(text) == "" {
		out.Error = ErrNoText
	}

	n.logger.Debug("text normalized",
		logging.String("language", lang),
		logging.Strings("steps", out.Steps),
		logging.Int("final_length", out.FinalLength))
	return out
}

func (n *TextNormalizer) translate(ctx context.Context, text, lang string) (legal.Translation, string) {
	tr := legal.Translation{SourceLanguage: lang, TargetLanguage: english}
	if n.translator == nil {
		tr.Note = "translation not available"
		return tr, text
	}
	translated, err := n.translator.Translate(ctx, text, lang)
	if err != nil {
		n.logger.Warn("translation failed, keeping original text", logging.String("language", lang), logging.Err(err))
		tr.Note = fmt.Sprintf("translation failed: %v", err)
		return tr, text
	}
	tr.Translated = true
	return tr, strings.TrimSpace(translated)
}

// DetectLanguage guesses the ISO 639-1 language of text. Text with fewer than
// ten non-blank characters is reported as unknown with zero confidence.
func DetectLanguage(text string) legal.LanguageDetection {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < minDetectableLength {
		return legal.LanguageDetection{Language: UnknownLanguage, Method: "length"}
	}
	info := whatlanggo.Detect(trimmed)
	code := info.Lang.Iso6391()
	if code == "" {
		return legal.LanguageDetection{Language: UnknownLanguage, Method: "whatlanggo"}
	}
	return legal.LanguageDetection{Language: code, Confidence: info.Confidence, Method: "whatlanggo"}
}

// Clean composes NFC, collapses whitespace, removes characters outside the
// allowed set and collapses runs of dots.
func Clean(text string) string {
	text = norm.NFC.String(text)
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = disallowedChars.ReplaceAllString(text, "")
	text = dotRun.ReplaceAllString(text, ".")
	return strings.TrimSpace(text)
}
