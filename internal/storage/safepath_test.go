package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIdentifier(t *testing.T) {
	good := []string{"ab/ab12.pdf", "file.txt", "0f/0f8c-1.png"}
	for _, id := range good {
		assert.NoError(t, ValidateIdentifier(id), id)
	}

	bad := []string{
		"",
		"../etc/passwd",
		"../../etc/passwd",
		"ab/../../etc/passwd",
		"ab/..",
		"/etc/passwd",
		`..\..\windows`,
		`ab\file.pdf`,
		"ab//file.pdf",
		"./file.pdf",
		"ab/file\x00.pdf",
		"ab/file\n.pdf",
	}
	for _, id := range bad {
		assert.ErrorIs(t, ValidateIdentifier(id), ErrPathTraversal, "%q", id)
	}
}

func TestResolveWithinRootRejectsSymlinkEscape(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s"), 0o600))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "ln")))

	_, err = resolveWithinRoot(root, "ln/secret.txt")
	assert.ErrorIs(t, err, ErrPathTraversal)
}

func TestResolveWithinRootAllowsMissingFile(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	p, err := resolveWithinRoot(root, "ab/new.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "ab", "new.pdf"), p)
}

func TestIsWithinUsesPathSemantics(t *testing.T) {
	assert.True(t, isWithin("/srv/uploads", "/srv/uploads/ab/x"))
	assert.True(t, isWithin("/srv/uploads", "/srv/uploads"))
	assert.False(t, isWithin("/srv/uploads", "/srv/uploads-evil/x"))
	assert.False(t, isWithin("/srv/uploads", "/srv"))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "report.pdf", sanitizeName("../../report.pdf"))
	assert.Equal(t, "report.pdf", sanitizeName(`C:\Users\x\report.pdf`))
	assert.Equal(t, "report.pdf", sanitizeName("rep\x00ort.pdf"))
	assert.Equal(t, "", sanitizeName(".."))
	assert.Equal(t, "", sanitizeName("dir/"))
}
