package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mbathio/university-management/internal/events"
	"github.com/mbathio/university-management/internal/models"
	"github.com/mbathio/university-management/internal/ratelimit"
	"github.com/mbathio/university-management/internal/repository"
	"github.com/mbathio/university-management/internal/security"
	"github.com/mbathio/university-management/internal/storage"
)

type memPrincipals struct {
	mu         sync.Mutex
	byID       map[string]models.Principal
	roleWrites int
}

func newMemPrincipals() *memPrincipals {
	return &memPrincipals{byID: map[string]models.Principal{}}
}

func (m *memPrincipals) Create(_ context.Context, p models.Principal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if strings.EqualFold(existing.Username, p.Username) {
			return repository.ErrUsernameTaken
		}
		if strings.EqualFold(existing.Email, p.Email) {
			return repository.ErrEmailTaken
		}
	}
	m.byID[p.ID] = p
	return nil
}

func (m *memPrincipals) GetByUsername(_ context.Context, username string) (models.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if strings.EqualFold(p.Username, username) {
			return p, nil
		}
	}
	return models.Principal{}, repository.ErrPrincipalNotFound
}

func (m *memPrincipals) GetByID(_ context.Context, id string) (models.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return models.Principal{}, repository.ErrPrincipalNotFound
	}
	return p, nil
}

func (m *memPrincipals) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	return err == nil, nil
}

func (m *memPrincipals) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if strings.EqualFold(p.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memPrincipals) UpdateRole(_ context.Context, id string, role models.Role) (models.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return models.Principal{}, repository.ErrPrincipalNotFound
	}
	p.Role = role
	m.byID[id] = p
	m.roleWrites++
	return p, nil
}

func (m *memPrincipals) UpdatePasswordHash(_ context.Context, id string, hash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return repository.ErrPrincipalNotFound
	}
	p.PasswordHash = hash
	m.byID[id] = p
	return nil
}

func (m *memPrincipals) add(t *testing.T, username, password string, role models.Role, active bool) models.Principal {
	t.Helper()
	hash, err := security.HashPasswordWithParams(password, security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
	require.NoError(t, err)
	p := models.Principal{
		ID:           "id-" + username,
		Username:     username,
		Email:        username + "@univ.test",
		PasswordHash: hash,
		Role:         role,
		Active:       active,
	}
	require.NoError(t, m.Create(context.Background(), p))
	return p
}

type memDocuments struct {
	mu   sync.Mutex
	docs map[string]models.Document
}

func newMemDocuments() *memDocuments {
	return &memDocuments{docs: map[string]models.Document{}}
}

func (m *memDocuments) Create(_ context.Context, d models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	m.docs[d.ID] = d
	return nil
}

func (m *memDocuments) GetByID(_ context.Context, id string) (models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return models.Document{}, repository.ErrDocumentNotFound
	}
	return d, nil
}

func (m *memDocuments) GetByFilePath(_ context.Context, filePath string) (models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.FilePath == filePath {
			return d, nil
		}
	}
	return models.Document{}, repository.ErrDocumentNotFound
}

func (m *memDocuments) ListVisible(_ context.Context, identity models.Identity, filter repository.DocumentFilter) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Document, 0)
	for _, d := range m.docs {
		if filter.Type != "" && d.Type != filter.Type {
			continue
		}
		if filter.Visibility != "" && d.Visibility != filter.Visibility {
			continue
		}
		if filter.Creator != "" && d.CreatedBy != filter.Creator {
			continue
		}
		if d.ReadableBy(identity) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDocuments) IsCreator(_ context.Context, id, principalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	return ok && d.CreatedBy == principalID, nil
}

func (m *memDocuments) Update(_ context.Context, d models.Document) (models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[d.ID]; !ok {
		return models.Document{}, repository.ErrDocumentNotFound
	}
	d.UpdatedAt = time.Now()
	m.docs[d.ID] = d
	return d, nil
}

func (m *memDocuments) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return repository.ErrDocumentNotFound
	}
	delete(m.docs, id)
	return nil
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, e events.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func newTokens(t *testing.T) *security.TokenService {
	t.Helper()
	tokens, err := security.NewTokenService(security.TokenConfig{
		Secret:      "service-test-secret-with-enough-bytes",
		AccessTTL:   time.Hour,
		RefreshTTL:  24 * time.Hour,
		NoncePrefix: "UCHK",
	})
	require.NoError(t, err)
	return tokens
}

func newAuth(t *testing.T) (*AuthService, *memPrincipals, *ratelimit.Guard) {
	t.Helper()
	principals := newMemPrincipals()
	guard := ratelimit.New(5, 15*time.Minute)
	return NewAuthService(principals, newTokens(t), guard, zerolog.Nop()), principals, guard
}

func newFileStore(t *testing.T) *storage.FileStore {
	t.Helper()
	fs, err := storage.NewFileStore(storage.Options{Root: t.TempDir(), MaxBytes: 1 << 20, Bucketed: true}, zerolog.Nop())
	require.NoError(t, err)
	return fs
}
