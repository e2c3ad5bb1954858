package document

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/turtacn/LegalLens/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Plain text
// ─────────────────────────────────────────────────────────────────────────────

// decodeText reads UTF-8 when valid. Otherwise bytes in 0x80-0x9F mark
// Windows-1252 (they are control codes in Latin-1); anything else is Latin-1.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return string(data)
	}
	dec := charmap.ISO8859_1.NewDecoder()
	for _, b := range data {
		if b >= 0x80 && b <= 0x9F {
			dec = charmap.Windows1252.NewDecoder()
			break
		}
	}
	out, err := dec.Bytes(data)
	if err != nil {
		return string(bytes.ToValidUTF8(data, []byte("�")))
	}
	return string(out)
}

// ─────────────────────────────────────────────────────────────────────────────
// PDF
// ─────────────────────────────────────────────────────────────────────────────

func readPDF(ctx context.Context, data []byte) (string, error) {
	if !filetype.IsType(data, matchers.TypePdf) {
		return "", errors.New(errors.ErrCodeDocumentDecode, "content is not a PDF")
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeDocumentDecode, "failed to open PDF")
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeDocumentDecode, "failed to read PDF page").
				WithDetail("page " + strconv.Itoa(i))
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// DOCX
// ─────────────────────────────────────────────────────────────────────────────

const docxBody = "word/document.xml"

// readDOCX joins the paragraphs of word/document.xml with newlines.
func readDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeDocumentDecode, "failed to open DOCX archive")
	}
	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return "", errors.New(errors.ErrCodeDocumentDecode, "DOCX archive has no "+docxBody)
	}
	rc, err := body.Open()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeDocumentDecode, "failed to open "+docxBody)
	}
	defer rc.Close()
	return paragraphs(rc)
}

func paragraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		paras  []string
		cur    strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeDocumentDecode, "malformed DOCX body")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				cur.WriteString("\t")
			case "br", "cr":
				cur.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paras = append(paras, cur.String())
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	if cur.Len() > 0 {
		paras = append(paras, cur.String())
	}
	return strings.Join(paras, "\n"), nil
}
