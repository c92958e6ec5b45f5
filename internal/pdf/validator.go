package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
)

// Info is the structural summary of a PDF read by pdfcpu
type Info struct {
	Pages     int
	Encrypted bool
}

// Validator inspects PDF structure without extracting text
type Validator struct{}

// NewValidator creates a new PDF validator
func NewValidator() *Validator {
	return &Validator{}
}

// Inspect reads the cross reference table of path and reports the page
// count and whether the document is encrypted
func (v *Validator) Inspect(path string) (*Info, error) {
	name := filepath.Base(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, perrors.Wrap(perrors.KindFileUnreadable, err, "cannot open PDF").WithFile(name)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := readContext(f, conf)
	if err != nil {
		if isPasswordError(err) {
			return nil, perrors.Wrap(perrors.KindPasswordProtected, err, "PDF is password protected").WithFile(name)
		}
		return nil, perrors.Wrap(perrors.KindExtractionFailed, err, "cannot read PDF structure").WithFile(name)
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return nil, perrors.Wrap(perrors.KindExtractionFailed, err, "cannot count PDF pages").WithFile(name)
	}

	return &Info{
		Pages:     ctx.PageCount,
		Encrypted: ctx.Encrypt != nil,
	}, nil
}

// CheckEncryption returns a KindPasswordProtected error when path cannot be
// opened without a user password. Other structural problems are left to the
// text extractor and OCR.
func (v *Validator) CheckEncryption(path string) error {
	_, err := v.Inspect(path)
	if perrors.Is(err, perrors.KindPasswordProtected) {
		return err
	}
	return nil
}

func readContext(f *os.File, conf *model.Configuration) (ctx *model.Context, err error) {
	defer func() {
		if p := recover(); p != nil {
			ctx, err = nil, fmt.Errorf("malformed PDF: %v", p)
		}
	}()
	return api.ReadContext(f, conf)
}

func isPasswordError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "decrypt")
}
