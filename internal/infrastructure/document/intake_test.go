package document

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const englishStatement = "On 25th January 2024 my neighbour broke into the house and stole the jewellery kept in the cupboard."

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?><Types/>`))
	require.NoError(t, err)
	if body != "" {
		w, err = zw.Create(docxBody)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>FIRST INFORMATION REPORT</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Complainant: </w:t></w:r><w:r><w:t>Ramesh</w:t></w:r></w:p>
    <w:p><w:r><w:t>Amount</w:t><w:tab/><w:t>Rs. 50,000</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestIsSupported(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"a.txt", "b.PDF", "c.docx", "d.jpeg", "e.TIF"} {
		assert.True(t, IsSupported(name), name)
	}
	for _, name := range []string{"a.doc", "b.exe", "noext"} {
		assert.False(t, IsSupported(name), name)
	}
}

func TestExtract_Text(t *testing.T) {
	t.Parallel()
	in := NewIntake(nil)

	got := in.Extract(context.Background(), "statement.txt", []byte("  "+englishStatement+"\n"))
	assert.Equal(t, englishStatement, got.Text)
	assert.Equal(t, MethodDirect, got.Method)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, len(englishStatement), got.CharCount)
	assert.Equal(t, "statement.txt", got.Filename)
	assert.Empty(t, got.Error)
}

func TestDecodeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"utf8", []byte("₹500 paid"), "₹500 paid"},
		{"bom", []byte("\xEF\xBB\xBFhello"), "hello"},
		{"latin1", []byte("caf\xe9 receipt"), "café receipt"},
		{"cp1252 quotes", []byte("\x93quoted\x94 \x80100"), "“quoted” €100"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, decodeText(tc.in))
		})
	}
}

func TestExtract_DOCX(t *testing.T) {
	t.Parallel()
	in := NewIntake(nil)

	got := in.Extract(context.Background(), "fir.docx", buildDOCX(t, documentXML))
	require.Empty(t, got.Error)
	assert.Equal(t, MethodDirect, got.Method)
	assert.Equal(t, "FIRST INFORMATION REPORT\nComplainant: Ramesh\nAmount\tRs. 50,000", got.Text)
}

func TestExtract_DOCXFailures(t *testing.T) {
	t.Parallel()
	in := NewIntake(nil)

	missing := in.Extract(context.Background(), "empty.docx", buildDOCX(t, ""))
	assert.Equal(t, MethodError, missing.Method)
	assert.Contains(t, missing.Error, docxBody)

	notZip := in.Extract(context.Background(), "bad.docx", []byte("plain text"))
	assert.Equal(t, MethodError, notZip.Method)
	assert.NotEmpty(t, notZip.Error)
	assert.Empty(t, notZip.Text)
}

func TestExtract_PDFRejectsNonPDF(t *testing.T) {
	t.Parallel()
	got := NewIntake(nil).Extract(context.Background(), "scan.pdf", []byte("not a pdf at all"))
	assert.Equal(t, MethodError, got.Method)
	assert.Contains(t, got.Error, "not a PDF")
}

func TestExtract_Images(t *testing.T) {
	t.Parallel()
	in := NewIntake(nil)

	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 0x49, 0x48, 0x44, 0x52}
	got := in.Extract(context.Background(), "photo.png", png)
	assert.Equal(t, MethodOCR, got.Method)
	assert.Contains(t, got.Error, "ocr is not available")
	assert.Empty(t, got.Text)

	fake := in.Extract(context.Background(), "photo.jpg", []byte("hello"))
	assert.Equal(t, MethodOCR, fake.Method)
	assert.Contains(t, fake.Error, "not a recognised image")
}

func TestExtract_Unsupported(t *testing.T) {
	t.Parallel()
	got := NewIntake(nil).Extract(context.Background(), "tool.EXE", []byte{0x4d, 0x5a})
	assert.Equal(t, MethodUnsupported, got.Method)
	assert.Equal(t, "Unsupported file type: .exe", got.Error)
}

func TestExtract_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := NewIntake(nil).Extract(ctx, "a.txt", []byte("text"))
	assert.Equal(t, MethodError, got.Method)
	assert.Equal(t, context.Canceled.Error(), got.Error)
}
