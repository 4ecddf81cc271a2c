package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbathio/university-management/internal/models"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testConfig() TokenConfig {
	return TokenConfig{
		Secret:      "a-secret-that-is-long-enough-for-hs256!",
		AccessTTL:   24 * time.Hour,
		RefreshTTL:  7 * 24 * time.Hour,
		NoncePrefix: "UCHK",
	}
}

func newService(t *testing.T, cfg TokenConfig, clock *fakeClock) *TokenService {
	t.Helper()
	svc, err := NewTokenService(cfg, WithClock(clock.Now))
	require.NoError(t, err)
	return svc
}

var alice = &models.Principal{ID: "p1", Username: "alice", Role: models.RoleTeacher}

func TestIssueAndValidate(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newService(t, testConfig(), clock)

	tok, err := svc.Issue(alice, TokenAccess)
	require.NoError(t, err)

	assert.True(t, svc.Validate(tok, "alice"))
	assert.False(t, svc.Validate(tok, "bob"))

	clock.Advance(24*time.Hour - time.Second)
	assert.True(t, svc.Validate(tok, "alice"))

	clock.Advance(2 * time.Second)
	assert.False(t, svc.Validate(tok, "alice"))
}

func TestValidateKind(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newService(t, testConfig(), clock)

	refresh, err := svc.Issue(alice, TokenRefresh)
	require.NoError(t, err)
	access, err := svc.Issue(alice, TokenAccess)
	require.NoError(t, err)

	assert.True(t, svc.ValidateKind(refresh, "alice", TokenRefresh))
	assert.False(t, svc.ValidateKind(access, "alice", TokenRefresh))

	clock.Advance(3 * 24 * time.Hour)
	assert.True(t, svc.ValidateKind(refresh, "alice", TokenRefresh))
	assert.False(t, svc.Validate(access, "alice"))
}

func TestTokenIDCarriesNoncePrefix(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newService(t, testConfig(), clock)

	tok, err := svc.Issue(alice, TokenAccess)
	require.NoError(t, err)

	claims := &Claims{}
	_, _, err = jwt.NewParser().ParseUnverified(tok, claims)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(claims.ID, "UCHK-"))
	assert.Equal(t, "TEACHER", claims.Role)
	assert.Equal(t, TokenAccess, claims.Kind)
	assert.Equal(t, claims.IssuedAt.Add(-10*time.Second).Unix(), claims.NotBefore.Unix())
}

func TestRejectsOtherSecret(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newService(t, testConfig(), clock)

	other := testConfig()
	other.Secret = "another-secret-that-is-long-enough-too"
	tok, err := newService(t, other, clock).Issue(alice, TokenAccess)
	require.NoError(t, err)

	assert.False(t, svc.Validate(tok, "alice"))
	_, err = svc.ParseSubject(tok)
	var te *TokenError
	assert.True(t, errors.As(err, &te))
}

func TestRejectsOtherDeployment(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newService(t, testConfig(), clock)

	other := testConfig()
	other.NoncePrefix = "ELSEWHERE"
	tok, err := newService(t, other, clock).Issue(alice, TokenAccess)
	require.NoError(t, err)

	assert.False(t, svc.Validate(tok, "alice"))
}

func TestRejectsOtherAlgorithm(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	cfg := testConfig()
	svc := newService(t, cfg, clock)

	now := clock.Now()
	claims := Claims{
		Kind: TokenAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			ID:        "UCHK-forged",
		},
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)
	assert.False(t, svc.Validate(hs512, "alice"))

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	assert.False(t, svc.Validate(none, "alice"))
	_, err = svc.ParseSubject(none)
	assert.Error(t, err)
}

func TestRejectsNotYetValid(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newService(t, testConfig(), clock)

	future := &fakeClock{t: clock.Now().Add(time.Hour)}
	tok, err := newService(t, testConfig(), future).Issue(alice, TokenAccess)
	require.NoError(t, err)

	assert.False(t, svc.Validate(tok, "alice"))
}

func TestParseSubjectIgnoresExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newService(t, testConfig(), clock)

	tok, err := svc.Issue(alice, TokenAccess)
	require.NoError(t, err)
	clock.Advance(48 * time.Hour)

	sub, err := svc.ParseSubject(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)
	assert.False(t, svc.Validate(tok, "alice"))
}

func TestParseSubjectMalformed(t *testing.T) {
	svc := newService(t, testConfig(), &fakeClock{t: time.Now()})

	for _, tok := range []string{"", "abc", "a.b.c", "Bearer x.y.z"} {
		_, err := svc.ParseSubject(tok)
		assert.Error(t, err, tok)
		assert.False(t, svc.Validate(tok, "alice"), tok)
	}
}

func TestShortSecretIsStretched(t *testing.T) {
	cfg := testConfig()
	cfg.Secret = "short"
	clock := &fakeClock{t: time.Now()}
	svc := newService(t, cfg, clock)

	assert.Len(t, svc.key, 32)
	tok, err := svc.Issue(alice, TokenAccess)
	require.NoError(t, err)
	assert.True(t, svc.Validate(tok, "alice"))
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Secret = ""
	_, err := NewTokenService(cfg)
	assert.Error(t, err)
}
