// Package sniffer decides whether uploaded bytes are an allowed document
// type. The extension selects the expected MIME types; the bytes decide.
package sniffer

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrUnknownType         = errors.New("unknown media type")
	ErrExtensionNotAllowed = errors.New("file extension not allowed")
	ErrContentMismatch     = errors.New("file content does not match its extension")
)

var allowList = map[string][]string{
	"pdf":  {"application/pdf"},
	"doc":  {"application/msword"},
	"docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	"xls":  {"application/vnd.ms-excel"},
	"xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	"ppt":  {"application/vnd.ms-powerpoint"},
	"pptx": {"application/vnd.openxmlformats-officedocument.presentationml.presentation"},
	"txt":  {"text/plain"},
	"zip":  {"application/zip", "application/x-zip-compressed"},
	"jpg":  {"image/jpeg"},
	"jpeg": {"image/jpeg"},
	"png":  {"image/png"},
	"gif":  {"image/gif"},
}

type Result struct {
	Extension string
	MIME      string
}

// Extension returns the lowercased extension of name without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Allowed returns the MIME types accepted for ext.
func Allowed(ext string) ([]string, bool) {
	mimes, ok := allowList[strings.ToLower(ext)]
	return mimes, ok
}

// Extensions lists the accepted extensions in sorted order.
func Extensions() []string {
	out := make([]string, 0, len(allowList))
	for ext := range allowList {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Detect returns the MIME type of data without parameters.
func Detect(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrUnknownType
	}
	return baseType(mimetype.Detect(data).String()), nil
}

// Check verifies that data is one of the types mapped from ext. Only an
// exact match counts; a detected subtype of an allowed type is rejected.
func Check(ext string, data []byte) (Result, error) {
	ext = strings.ToLower(ext)
	expected, ok := allowList[ext]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrExtensionNotAllowed, ext)
	}
	if len(data) == 0 {
		return Result{}, ErrUnknownType
	}

	detected := mimetype.Detect(data)
	for _, want := range expected {
		if detected.Is(want) {
			return Result{Extension: ext, MIME: want}, nil
		}
	}
	return Result{}, fmt.Errorf("%w: detected %s for .%s", ErrContentMismatch, baseType(detected.String()), ext)
}

func baseType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}
