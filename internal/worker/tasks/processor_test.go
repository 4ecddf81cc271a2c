package tasks

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mbathio/university-management/internal/apperr"
	"github.com/mbathio/university-management/internal/events"
	"github.com/mbathio/university-management/internal/models"
	"github.com/mbathio/university-management/internal/repository"
	"github.com/mbathio/university-management/internal/storage"
)

type MockNotifications struct {
	mock.Mock
}

func (m *MockNotifications) Create(ctx context.Context, n models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type MockFiles struct {
	mock.Mock
}

func (m *MockFiles) Load(ctx context.Context, id string) (io.ReadSeekCloser, storage.StoredFile, error) {
	args := m.Called(ctx, id)
	rc, _ := args.Get(0).(io.ReadSeekCloser)
	return rc, args.Get(1).(storage.StoredFile), args.Error(2)
}

type MockMirror struct {
	mock.Mock
}

func (m *MockMirror) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, _ := io.ReadAll(r)
	return m.Called(ctx, key, data, size, contentType).Error(0)
}

func (m *MockMirror) Remove(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type nopCloser struct {
	io.ReadSeeker
}

func (nopCloser) Close() error { return nil }

func message(e events.Event) redis.XMessage {
	return redis.XMessage{ID: "1-0", Values: e.Values()}
}

func TestCreatedEventWritesNotification(t *testing.T) {
	notes := new(MockNotifications)
	notes.On("Create", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.ID == "ntf_doc1" && n.DocumentID == "doc1" && n.Audience == models.VisibilityTeachers
	})).Return(nil).Once()

	p := NewProcessor(notes, nil, nil, zerolog.Nop())
	err := p.Handle(context.Background(), message(events.Event{
		Type: events.DocumentCreated, DocumentID: "doc1", Title: "Exams", Visibility: "TEACHERS", Actor: "alice",
	}))

	require.NoError(t, err)
	notes.AssertExpectations(t)
}

func TestCreatedEventSkipsRestrictedDocuments(t *testing.T) {
	notes := new(MockNotifications)
	p := NewProcessor(notes, nil, nil, zerolog.Nop())

	err := p.Handle(context.Background(), message(events.Event{
		Type: events.DocumentCreated, DocumentID: "doc1", Visibility: "RESTRICTED",
	}))

	require.NoError(t, err)
	notes.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreatedEventErrors(t *testing.T) {
	t.Run("document gone is acknowledged", func(t *testing.T) {
		notes := new(MockNotifications)
		notes.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDocumentNotFound)
		p := NewProcessor(notes, nil, nil, zerolog.Nop())

		assert.NoError(t, p.Handle(context.Background(), message(events.Event{
			Type: events.DocumentCreated, DocumentID: "doc1", Visibility: "PUBLIC",
		})))
	})

	t.Run("database failure is retried", func(t *testing.T) {
		notes := new(MockNotifications)
		notes.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
		p := NewProcessor(notes, nil, nil, zerolog.Nop())

		assert.Error(t, p.Handle(context.Background(), message(events.Event{
			Type: events.DocumentCreated, DocumentID: "doc1", Visibility: "PUBLIC",
		})))
	})
}

func TestStoredEventMirrorsFile(t *testing.T) {
	content := []byte("%PDF-1.4 body")
	files := new(MockFiles)
	files.On("Load", mock.Anything, "ab/abc.pdf").
		Return(nopCloser{bytes.NewReader(content)}, storage.StoredFile{ID: "ab/abc.pdf", ContentType: "application/pdf", Size: int64(len(content))}, nil)
	mirror := new(MockMirror)
	mirror.On("Put", mock.Anything, "ab/abc.pdf", content, int64(len(content)), "application/pdf").Return(nil).Once()

	p := NewProcessor(nil, files, mirror, zerolog.Nop())
	err := p.Handle(context.Background(), message(events.Event{
		Type: events.DocumentStored, DocumentID: "doc1", FilePath: "ab/abc.pdf",
	}))

	require.NoError(t, err)
	mirror.AssertExpectations(t)
}

func TestStoredEventSkipsMissingFile(t *testing.T) {
	files := new(MockFiles)
	files.On("Load", mock.Anything, "ab/gone.pdf").Return(nil, storage.StoredFile{}, apperr.ErrFileNotFound)
	mirror := new(MockMirror)

	p := NewProcessor(nil, files, mirror, zerolog.Nop())
	err := p.Handle(context.Background(), message(events.Event{
		Type: events.DocumentStored, DocumentID: "doc1", FilePath: "ab/gone.pdf",
	}))

	require.NoError(t, err)
	mirror.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStoredEventWithoutMirrorIsNoop(t *testing.T) {
	files := new(MockFiles)
	p := NewProcessor(nil, files, nil, zerolog.Nop())

	require.NoError(t, p.Handle(context.Background(), message(events.Event{
		Type: events.DocumentStored, DocumentID: "doc1", FilePath: "ab/abc.pdf",
	})))
	files.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
}

func TestDeletedEventRemovesMirror(t *testing.T) {
	mirror := new(MockMirror)
	mirror.On("Remove", mock.Anything, "ab/abc.pdf").Return(nil).Once()

	p := NewProcessor(nil, nil, mirror, zerolog.Nop())
	require.NoError(t, p.Handle(context.Background(), message(events.Event{
		Type: events.DocumentDeleted, DocumentID: "doc1", FilePath: "ab/abc.pdf",
	})))
	mirror.AssertExpectations(t)

	mirror.On("Remove", mock.Anything, "ab/def.pdf").Return(errors.New("unreachable"))
	assert.Error(t, p.Handle(context.Background(), message(events.Event{
		Type: events.DocumentDeleted, DocumentID: "doc2", FilePath: "ab/def.pdf",
	})))
}

func TestMalformedAndUnknownEventsAreDropped(t *testing.T) {
	p := NewProcessor(nil, nil, nil, zerolog.Nop())

	assert.NoError(t, p.Handle(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]interface{}{"noise": "x"}}))
	assert.NoError(t, p.Handle(context.Background(), message(events.Event{Type: "document.archived", DocumentID: "doc1"})))
}
