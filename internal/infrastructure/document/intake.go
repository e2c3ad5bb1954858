// Package document extracts plain text from uploaded files. Supported inputs
// are plain text, PDF and DOCX; image files are recognised but no OCR engine
// is bundled, so they are reported as unreadable.
package document

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/intelligence/preprocess"
	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

// Extraction methods reported in DocumentText.Method.
const (
	MethodDirect      = "direct"
	MethodOCR         = "ocr"
	MethodUnsupported = "unsupported"
	MethodError       = "error"
)

// scannedPDFThreshold is the text length under which a PDF is assumed to be
// a scan.
const scannedPDFThreshold = 100

var (
	imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".bmp": true, ".tiff": true, ".tif": true}
	pdfExtensions   = map[string]bool{".pdf": true}
	docxExtensions  = map[string]bool{".docx": true}
	textExtensions  = map[string]bool{".txt": true}
)

// Extractor turns file bytes into text. Failures are reported in the
// returned record, never as a Go error.
type Extractor interface {
	Extract(ctx context.Context, filename string, data []byte) legal.DocumentText
}

// IsSupported reports whether filename has a known extension.
func IsSupported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return imageExtensions[ext] || pdfExtensions[ext] || docxExtensions[ext] || textExtensions[ext]
}

// Intake routes files to a format reader by extension.
type Intake struct {
	logger logging.Logger
}

func NewIntake(log logging.Logger) *Intake {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Intake{logger: log.Named("document-intake")}
}

func (in *Intake) Extract(ctx context.Context, filename string, data []byte) (out legal.DocumentText) {
	ext := strings.ToLower(filepath.Ext(filename))
	out = legal.DocumentText{Filename: filename}

	defer func() {
		if r := recover(); r != nil {
			in.logger.Error("document reader panicked", logging.String("filename", filename), logging.Any("panic", r))
			out = legal.DocumentText{Filename: filename, Method: MethodError, Error: fmt.Sprintf("reader panicked: %v", r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		out.Method = MethodError
		out.Error = err.Error()
		return out
	}

	var (
		text   string
		method = MethodDirect
		err    error
	)
	switch {
	case imageExtensions[ext]:
		method = MethodOCR
		err = readImage(data)
	case pdfExtensions[ext]:
		text, err = readPDF(ctx, data)
		if err == nil && len(strings.TrimSpace(text)) < scannedPDFThreshold {
			in.logger.Warn("pdf has little extractable text, it may be scanned",
				logging.String("filename", filename), logging.Int("chars", len(strings.TrimSpace(text))))
		}
	case docxExtensions[ext]:
		text, err = readDOCX(data)
	case textExtensions[ext]:
		text = decodeText(data)
	default:
		out.Method = MethodUnsupported
		out.Error = fmt.Sprintf("Unsupported file type: %s", ext)
		return out
	}

	if err != nil {
		in.logger.Warn("text extraction failed", logging.String("filename", filename), logging.Err(err))
		if method == MethodDirect {
			method = MethodError
		}
		out.Method = method
		out.Error = err.Error()
		return out
	}

	text = strings.TrimSpace(text)
	out.Text = text
	out.Method = method
	out.CharCount = utf8.RuneCountInString(text)
	out.Language = preprocess.DetectLanguage(text).Language

	in.logger.Info("document extracted",
		logging.String("filename", filename),
		logging.String("method", method),
		logging.String("language", out.Language),
		logging.Int("chars", out.CharCount))
	return out
}

// readImage checks the content really is an image. Text recognition is not
// available, so the result is always an error.
func readImage(data []byte) error {
	if !filetype.IsImage(data) {
		return errors.New(errors.ErrCodeDocumentDecode, "content is not a recognised image")
	}
	kind, _ := filetype.Match(data)
	return errors.Newf(errors.ErrCodeUnsupportedDocument, "ocr is not available for %s images", kind.Extension)
}
