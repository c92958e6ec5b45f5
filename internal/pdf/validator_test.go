package pdf

import (
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
)

func TestValidator_Inspect(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "listing.pdf", buildPDF("Lot 1", "Lot 2", "Lot 3"))

	info, err := NewValidator().Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, 3, info.Pages)
	assert.False(t, info.Encrypted)
}

func TestValidator_Inspect_Errors(t *testing.T) {
	dir := t.TempDir()
	garbage := writeFile(t, dir, "broken.pdf", []byte("%PDF-1.4 truncated"))

	v := NewValidator()

	_, err := v.Inspect(filepath.Join(dir, "absent.pdf"))
	assert.True(t, perrors.Is(err, perrors.KindFileUnreadable))

	_, err = v.Inspect(garbage)
	assert.True(t, perrors.Is(err, perrors.KindExtractionFailed))

	// structural damage is not a password problem
	assert.NoError(t, v.CheckEncryption(garbage))
}

func TestValidator_PasswordProtected(t *testing.T) {
	dir := t.TempDir()
	plain := writeFile(t, dir, "plain.pdf", buildPDF("Confidential appraisal"))
	locked := filepath.Join(dir, "locked.pdf")

	conf := model.NewAESConfiguration("user-secret", "owner-secret", 256)
	require.NoError(t, api.EncryptFile(plain, locked, conf))

	v := NewValidator()
	err := v.CheckEncryption(locked)
	require.Error(t, err)
	assert.True(t, perrors.Is(err, perrors.KindPasswordProtected))

	// the reader refuses the file without trying to extract it
	_, err = NewReader(DefaultMinTextLength).ReadTextLayer(locked)
	assert.True(t, perrors.Is(err, perrors.KindPasswordProtected))
}
