package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
	"github.com/a3tai/proposal-builder/internal/ocr"
	"github.com/a3tai/proposal-builder/internal/pdf"
)

type fakeLayer struct {
	layer *pdf.TextLayer
	err   error
}

func (f fakeLayer) ReadTextLayer(string) (*pdf.TextLayer, error) {
	return f.layer, f.err
}

type fakeOCR struct {
	res   *ocr.Result
	err   error
	calls int
}

func (f *fakeOCR) OCRPDF(context.Context, string) (*ocr.Result, error) {
	f.calls++
	return f.res, f.err
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want Kind
	}{
		{"deed.PDF", nil, KindPDF},
		{"notes.md", nil, KindText},
		{"data.json", nil, KindText},
		{"front.JPEG", nil, KindImage},
		{"scan.tiff", nil, KindImage},
		{"README", []byte("plain words here"), KindText},
		{"scan", []byte("%PDF-1.7\n%binary"), KindPDF},
		{"photo", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), KindImage},
		{"blob.bin", []byte{0x00, 0x01, 0x02, 0xff, 0xfe}, KindUnsupported},
		{"archive.docx", []byte("PK\x03\x04"), KindUnsupported},
		{"empty.dat", nil, KindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.name, tt.head))
		})
	}
}

func TestExtract_PDF(t *testing.T) {
	scanErr := perrors.New(perrors.KindExtractionFailed, "cannot parse PDF")

	tests := []struct {
		name       string
		layer      fakeLayer
		ocr        *fakeOCR
		wantText   string
		wantMethod string
		wantKind   perrors.ErrorKind
		wantOCR    int
	}{
		{
			name:       "sufficient text layer",
			layer:      fakeLayer{layer: &pdf.TextLayer{Text: "full text", Pages: 1, Sufficient: true}},
			ocr:        &fakeOCR{},
			wantText:   "full text",
			wantMethod: MethodPDFText,
		},
		{
			name:       "short text layer uses OCR",
			layer:      fakeLayer{layer: &pdf.TextLayer{Text: "x", Pages: 2}},
			ocr:        &fakeOCR{res: &ocr.Result{Text: "ocr text", Pages: 2}},
			wantText:   "ocr text",
			wantMethod: MethodPDFOCR,
			wantOCR:    1,
		},
		{
			name:       "parse failure uses OCR",
			layer:      fakeLayer{err: scanErr},
			ocr:        &fakeOCR{res: &ocr.Result{Text: "recovered", Pages: 1}},
			wantText:   "recovered",
			wantMethod: MethodPDFOCR,
			wantOCR:    1,
		},
		{
			name:     "password protected skips OCR",
			layer:    fakeLayer{err: perrors.New(perrors.KindPasswordProtected, "locked")},
			ocr:      &fakeOCR{},
			wantKind: perrors.KindPasswordProtected,
		},
		{
			name:     "unreadable skips OCR",
			layer:    fakeLayer{err: perrors.New(perrors.KindFileUnreadable, "denied")},
			ocr:      &fakeOCR{},
			wantKind: perrors.KindFileUnreadable,
		},
		{
			name:     "OCR exhausted",
			layer:    fakeLayer{layer: &pdf.TextLayer{}},
			ocr:      &fakeOCR{err: perrors.New(perrors.KindExtractionFailed, "no text")},
			wantKind: perrors.KindExtractionFailed,
			wantOCR:  1,
		},
		{
			name:     "missing toolchain propagates",
			layer:    fakeLayer{layer: &pdf.TextLayer{}},
			ocr:      &fakeOCR{err: perrors.New(perrors.KindDependencyMissing, "tesseract")},
			wantKind: perrors.KindDependencyMissing,
			wantOCR:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.layer, tt.ocr, nil)
			out, err := e.Extract(context.Background(), "doc.pdf", KindPDF)

			assert.Equal(t, tt.wantOCR, tt.ocr.calls)
			if tt.wantKind != perrors.KindUnknown {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, perrors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, out.Text)
			assert.Equal(t, tt.wantMethod, out.Method)
		})
	}
}

func TestExtract_PDFWithoutOCR(t *testing.T) {
	e := New(fakeLayer{layer: &pdf.TextLayer{}}, nil, nil)
	_, err := e.Extract(context.Background(), "doc.pdf", KindPDF)
	assert.True(t, perrors.Is(err, perrors.KindExtractionFailed))
}

func TestExtract_Text(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "notes.txt")
	bom := filepath.Join(dir, "bom.txt")
	bad := filepath.Join(dir, "latin1.txt")
	require.NoError(t, os.WriteFile(good, []byte("Lot 12: walnut dresser"), 0o644))
	require.NoError(t, os.WriteFile(bom, []byte("\xEF\xBB\xBFhello"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte{'c', 'a', 'f', 0xe9}, 0o644))

	e := New(fakeLayer{}, nil, nil)

	out, err := e.Extract(context.Background(), good, KindText)
	require.NoError(t, err)
	assert.Equal(t, "Lot 12: walnut dresser", out.Text)
	assert.Equal(t, MethodText, out.Method)

	out, err = e.Extract(context.Background(), bom, KindText)
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Text)

	_, err = e.Extract(context.Background(), bad, KindText)
	assert.True(t, perrors.Is(err, perrors.KindExtractionFailed))

	_, err = e.Extract(context.Background(), filepath.Join(dir, "gone.txt"), KindText)
	assert.True(t, perrors.Is(err, perrors.KindFileUnreadable))
}

func TestExtract_ImageAndUnsupported(t *testing.T) {
	e := New(fakeLayer{}, nil, nil)

	out, err := e.Extract(context.Background(), "/photos/front.jpg", KindImage)
	require.NoError(t, err)
	assert.Equal(t, "/photos/front.jpg", out.ImagePath)
	assert.Empty(t, out.Text)

	_, err = e.Extract(context.Background(), "blob.bin", KindUnsupported)
	require.Error(t, err)
	assert.True(t, perrors.Is(err, perrors.KindUnsupportedType))
	var pe *perrors.ProposalError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "unsupported type", pe.Reason())
}
