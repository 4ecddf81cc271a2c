package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

var ErrPathTraversal = errors.New("path escapes storage root")

// ValidateIdentifier rejects identifiers that could name anything other than
// a file below the root: parent segments, absolute paths, backslashes,
// control characters and empty segments.
func ValidateIdentifier(id string) error {
	if id == "" || len(id) > 255 {
		return ErrPathTraversal
	}
	if strings.HasPrefix(id, "/") || strings.ContainsRune(id, '\\') || filepath.IsAbs(id) || filepath.VolumeName(id) != "" {
		return ErrPathTraversal
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return ErrPathTraversal
		}
	}
	for _, seg := range strings.Split(id, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return ErrPathTraversal
		}
	}
	return nil
}

// resolveWithinRoot maps a validated identifier to a path under rootAbs.
// rootAbs must already be absolute with symlinks evaluated. Existing path
// components are resolved through symlinks and containment is decided with
// filepath.Rel.
func resolveWithinRoot(rootAbs, id string) (string, error) {
	if err := ValidateIdentifier(id); err != nil {
		return "", err
	}

	joined := filepath.Join(rootAbs, filepath.FromSlash(id))
	if !isWithin(rootAbs, joined) {
		return "", ErrPathTraversal
	}
	if hasSymlinkComponent(rootAbs, joined) {
		return "", ErrPathTraversal
	}

	if existing := nearestExisting(joined); existing != "" {
		resolved, err := filepath.EvalSymlinks(existing)
		if err != nil {
			return "", err
		}
		if !isWithin(rootAbs, resolved) {
			return "", ErrPathTraversal
		}
	}
	return joined, nil
}

func isWithin(root, candidate string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(candidate))
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func hasSymlinkComponent(rootAbs, fullPath string) bool {
	rel, err := filepath.Rel(rootAbs, fullPath)
	if err != nil {
		return true
	}
	if rel == "." {
		return false
	}
	cur := rootAbs
	for _, p := range strings.Split(rel, string(filepath.Separator)) {
		if p == "" || p == "." {
			continue
		}
		cur = filepath.Join(cur, p)
		st, err := os.Lstat(cur)
		if err != nil {
			return false
		}
		if st.Mode()&os.ModeSymlink != 0 {
			return true
		}
	}
	return false
}

func nearestExisting(p string) string {
	cur := p
	for {
		_, err := os.Lstat(cur)
		if err == nil {
			return cur
		}
		if !os.IsNotExist(err) {
			return ""
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return ""
		}
		cur = parent
	}
}

// sanitizeName keeps the base name of a client-supplied file name and drops
// separators and control characters.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}
