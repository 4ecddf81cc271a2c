package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mbathio/university-management/internal/apperr"
	"github.com/mbathio/university-management/internal/media/sniffer"
)

const (
	DefaultMaxBytes = 10 << 20

	dirPerm  = 0o700
	filePerm = 0o600
	sniffLen = 3072
)

var (
	ErrEmptyFile       = apperr.New(apperr.KindValidation, "empty_file", "file is empty")
	ErrInvalidFileName = apperr.New(apperr.KindValidation, "invalid_file_name", "invalid file name")
	ErrTypeNotAllowed  = apperr.New(apperr.KindValidation, "file_type_not_allowed", "file type is not allowed")
	ErrContentMismatch = apperr.New(apperr.KindValidation, "content_mismatch", "file content does not match its type")
	ErrTooLarge        = apperr.New(apperr.KindValidation, "file_too_large", "file exceeds the maximum upload size").WithStatus(http.StatusRequestEntityTooLarge)
)

// StoredFile describes a file held by the store. ID is the only handle a
// client ever sees.
type StoredFile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Extension   string `json:"extension"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type Options struct {
	Root     string
	MaxBytes int64
	Bucketed bool
}

// FileStore keeps uploaded documents under a single sandboxed root.
type FileStore struct {
	root     string
	maxBytes int64
	bucketed bool
	log      zerolog.Logger
}

func NewFileStore(opts Options, log zerolog.Logger) (*FileStore, error) {
	if opts.Root == "" {
		return nil, errors.New("storage root is required")
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(opts.Root, dirPerm); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	abs, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}

	return &FileStore{
		root:     canonical,
		maxBytes: opts.MaxBytes,
		bucketed: opts.Bucketed,
		log:      log.With().Str("component", "filestore").Logger(),
	}, nil
}

func (s *FileStore) MaxBytes() int64 { return s.maxBytes }

// Store validates and persists r under a fresh random identifier.
func (s *FileStore) Store(ctx context.Context, r io.Reader, declaredName string) (StoredFile, error) {
	if r == nil {
		return StoredFile{}, ErrEmptyFile
	}
	name := sanitizeName(declaredName)
	if name == "" {
		return StoredFile{}, ErrInvalidFileName
	}
	ext := sniffer.Extension(name)
	if _, ok := sniffer.Allowed(ext); !ok {
		return StoredFile{}, ErrTypeNotAllowed
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return StoredFile{}, apperr.Wrap(apperr.KindStorage, "storage_error", "file storage failure", fmt.Errorf("read upload: %w", err))
	}
	if len(data) == 0 {
		return StoredFile{}, ErrEmptyFile
	}
	if int64(len(data)) > s.maxBytes {
		return StoredFile{}, ErrTooLarge
	}

	detected, err := sniffer.Check(ext, data)
	if err != nil {
		s.log.Warn().Str("extension", ext).Err(err).Msg("rejected upload with mismatched content")
		return StoredFile{}, ErrContentMismatch
	}

	if err := ctx.Err(); err != nil {
		return StoredFile{}, err
	}

	id := uuid.NewString() + "." + ext
	if s.bucketed {
		id = path.Join(id[:2], id)
	}

	full, err := resolveWithinRoot(s.root, id)
	if err != nil {
		return StoredFile{}, apperr.Wrap(apperr.KindStorage, "storage_error", "file storage failure", err)
	}
	if err := writeAtomic(full, data); err != nil {
		return StoredFile{}, apperr.Wrap(apperr.KindStorage, "storage_error", "file storage failure", err)
	}

	s.log.Debug().Str("file_id", id).Int("size", len(data)).Str("content_type", detected.MIME).Msg("stored file")

	return StoredFile{
		ID:          id,
		Name:        name,
		Extension:   ext,
		ContentType: detected.MIME,
		Size:        int64(len(data)),
	}, nil
}

func writeAtomic(full string, data []byte) error {
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create bucket dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		cleanup()
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Load opens a stored file. The content type is detected again from the
// stored bytes.
func (s *FileStore) Load(ctx context.Context, id string) (io.ReadSeekCloser, StoredFile, error) {
	full, err := s.resolve(id)
	if err != nil {
		return nil, StoredFile{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, StoredFile{}, err
	}

	f, err := os.Open(full)
	if err != nil {
		return nil, StoredFile{}, apperr.ErrFileNotFound
	}
	st, err := f.Stat()
	if err != nil || !st.Mode().IsRegular() {
		f.Close()
		return nil, StoredFile{}, apperr.ErrFileNotFound
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, StoredFile{}, apperr.ErrFileNotFound
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, StoredFile{}, apperr.Wrap(apperr.KindStorage, "storage_error", "file storage failure", err)
	}

	contentType, err := sniffer.Detect(head[:n])
	if err != nil {
		contentType = "application/octet-stream"
	}

	return f, StoredFile{
		ID:          id,
		Name:        path.Base(id),
		Extension:   sniffer.Extension(id),
		ContentType: contentType,
		Size:        st.Size(),
	}, nil
}

// Delete removes a stored file. A file that is already gone is not an error.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	full, err := s.resolve(id)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperr.Wrap(apperr.KindStorage, "storage_error", "file storage failure", err)
	}
	return nil
}

func (s *FileStore) resolve(id string) (string, error) {
	full, err := resolveWithinRoot(s.root, id)
	if err != nil {
		if errors.Is(err, ErrPathTraversal) {
			s.log.Warn().Str("identifier", id).Msg("rejected file identifier outside storage root")
			return "", apperr.ErrInvalidIdentifier
		}
		return "", apperr.ErrFileNotFound
	}
	return full, nil
}

// CheckIdentifier applies the identifier rules without touching the
// filesystem, so callers can reject a request before any lookup.
func (s *FileStore) CheckIdentifier(id string) error {
	if err := ValidateIdentifier(id); err != nil {
		s.log.Warn().Str("identifier", id).Msg("rejected file identifier outside storage root")
		return apperr.ErrInvalidIdentifier
	}
	return nil
}
