package sniffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngHead  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	jpegHead = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	pdfHead  = []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")
	gifHead  = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00")
)

func TestCheckAcceptsMatchingContent(t *testing.T) {
	cases := []struct {
		ext  string
		data []byte
		mime string
	}{
		{"png", pngHead, "image/png"},
		{"PNG", pngHead, "image/png"},
		{"jpg", jpegHead, "image/jpeg"},
		{"jpeg", jpegHead, "image/jpeg"},
		{"pdf", pdfHead, "application/pdf"},
		{"gif", gifHead, "image/gif"},
		{"txt", []byte("hello, plain text\n"), "text/plain"},
	}
	for _, tc := range cases {
		res, err := Check(tc.ext, tc.data)
		require.NoError(t, err, tc.ext)
		assert.Equal(t, tc.mime, res.MIME, tc.ext)
	}
}

func TestCheckRejectsDisguisedContent(t *testing.T) {
	_, err := Check("pdf", pngHead)
	assert.ErrorIs(t, err, ErrContentMismatch)

	_, err = Check("txt", []byte("<html><body><script>alert(1)</script></body></html>"))
	assert.ErrorIs(t, err, ErrContentMismatch)
}

func TestCheckRejectsUnknownExtension(t *testing.T) {
	for _, ext := range []string{"exe", "svg", "html", ""} {
		_, err := Check(ext, pdfHead)
		assert.ErrorIs(t, err, ErrExtensionNotAllowed, ext)
	}
}

func TestCheckRejectsEmpty(t *testing.T) {
	_, err := Check("txt", nil)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "pdf", Extension("Report.Final.PDF"))
	assert.Equal(t, "", Extension("README"))
}

func TestDetect(t *testing.T) {
	mime, err := Detect([]byte("just words"))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mime)
}

func TestExtensionsSorted(t *testing.T) {
	exts := Extensions()
	assert.Contains(t, exts, "docx")
	assert.IsIncreasing(t, exts)
}
