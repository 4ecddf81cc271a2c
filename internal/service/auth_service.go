package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mbathio/university-management/internal/apperr"
	"github.com/mbathio/university-management/internal/ids"
	"github.com/mbathio/university-management/internal/models"
	"github.com/mbathio/university-management/internal/ratelimit"
	"github.com/mbathio/university-management/internal/repository"
	"github.com/mbathio/university-management/internal/security"
)

var (
	ErrUsernameExists = apperr.New(apperr.KindConflict, "username_exists", "username is already taken")
	ErrEmailExists    = apperr.New(apperr.KindConflict, "email_exists", "email is already registered")
	ErrInvalidRole    = apperr.New(apperr.KindValidation, "invalid_role", "unknown role")
	ErrInvalidInput   = apperr.New(apperr.KindValidation, "invalid_request", "invalid request")
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{3,50}$`)

const minPasswordLen = 8

type PrincipalStore interface {
	Create(ctx context.Context, p models.Principal) error
	GetByUsername(ctx context.Context, username string) (models.Principal, error)
	GetByID(ctx context.Context, id string) (models.Principal, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdateRole(ctx context.Context, id string, role models.Role) (models.Principal, error)
	UpdatePasswordHash(ctx context.Context, id string, hash []byte) error
}

type AuthService struct {
	principals PrincipalStore
	tokens     *security.TokenService
	guard      *ratelimit.Guard
	log        zerolog.Logger
}

func NewAuthService(principals PrincipalStore, tokens *security.TokenService, guard *ratelimit.Guard, log zerolog.Logger) *AuthService {
	return &AuthService{
		principals: principals,
		tokens:     tokens,
		guard:      guard,
		log:        log.With().Str("component", "auth").Logger(),
	}
}

type LoginInput struct {
	Username string
	Password string
	ClientIP string
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	Principal    models.Principal
}

// Login checks the lockout before touching credentials. Unknown users,
// inactive users and wrong passwords fail identically.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	key := ratelimit.Key(input.ClientIP, username)

	if s.guard.IsLocked(key) {
		s.log.Warn().Str("client_ip", input.ClientIP).Msg("login refused while locked")
		return AuthResult{}, apperr.ErrTooManyAttempts
	}

	if username == "" || input.Password == "" {
		return AuthResult{}, s.fail(key, input.ClientIP)
	}

	p, err := s.principals.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, repository.ErrPrincipalNotFound):
		security.BurnVerify(input.Password)
		return AuthResult{}, s.fail(key, input.ClientIP)
	case err != nil:
		return AuthResult{}, apperr.Wrap(apperr.KindInternal, "internal_error", "internal server error", err)
	}

	ok, err := security.VerifyPassword(input.Password, p.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("principal_id", p.ID).Msg("stored password hash unreadable")
	}
	if err != nil || !ok || !p.Active {
		return AuthResult{}, s.fail(key, input.ClientIP)
	}

	s.guard.OnSuccess(key)

	if security.NeedsRehash(p.PasswordHash) {
		s.upgradeHash(ctx, p.ID, input.Password)
	}

	return s.issue(p)
}

func (s *AuthService) fail(key, clientIP string) error {
	attempts := s.guard.OnFailure(key)
	s.log.Warn().Str("client_ip", clientIP).Int("attempts", attempts).Msg("login failed")
	return apperr.ErrInvalidCredentials
}

func (s *AuthService) upgradeHash(ctx context.Context, principalID, password string) {
	hash, err := security.HashPassword(password)
	if err != nil {
		s.log.Warn().Err(err).Str("principal_id", principalID).Msg("rehash password failed")
		return
	}
	if err := s.principals.UpdatePasswordHash(ctx, principalID, hash); err != nil {
		s.log.Warn().Err(err).Str("principal_id", principalID).Msg("store upgraded password hash failed")
	}
}

func (s *AuthService) issue(p models.Principal) (AuthResult, error) {
	access, err := s.tokens.Issue(&p, security.TokenAccess)
	if err != nil {
		return AuthResult{}, apperr.Wrap(apperr.KindInternal, "internal_error", "internal server error", err)
	}
	refresh, err := s.tokens.Issue(&p, security.TokenRefresh)
	if err != nil {
		return AuthResult{}, apperr.Wrap(apperr.KindInternal, "internal_error", "internal server error", err)
	}
	return AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokens.TTL(security.TokenAccess).Seconds()),
		Principal:    p,
	}, nil
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// Register creates a principal. Only an authenticated Admin caller may pick
// the role; everyone else gets Student whatever they asked for.
func (s *AuthService) Register(ctx context.Context, input RegisterInput, caller *models.Identity) (models.Principal, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if !usernamePattern.MatchString(username) || !strings.Contains(email, "@") || len(input.Password) < minPasswordLen {
		return models.Principal{}, ErrInvalidInput
	}

	role := models.RoleStudent
	if caller != nil && caller.IsAdmin() && input.Role != "" {
		r, ok := models.ParseRole(strings.ToUpper(input.Role))
		if !ok {
			return models.Principal{}, ErrInvalidRole
		}
		role = r
	} else if input.Role != "" && !strings.EqualFold(input.Role, string(models.RoleStudent)) {
		s.log.Warn().Str("requested_role", input.Role).Msg("ignored role on public registration")
	}

	if taken, err := s.principals.ExistsByUsername(ctx, username); err != nil {
		return models.Principal{}, apperr.Wrap(apperr.KindInternal, "internal_error", "internal server error", err)
	} else if taken {
		return models.Principal{}, ErrUsernameExists
	}
	if taken, err := s.principals.ExistsByEmail(ctx, email); err != nil {
		return models.Principal{}, apperr.Wrap(apperr.KindInternal, "internal_error", "internal server error", err)
	} else if taken {
		return models.Principal{}, ErrEmailExists
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.Principal{}, apperr.Wrap(apperr.KindInternal, "internal_error", "internal server error", err)
	}

	p := models.Principal{
		ID:           ids.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.principals.Create(ctx, p); err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameTaken):
			return models.Principal{}, ErrUsernameExists
		case errors.Is(err, repository.ErrEmailTaken):
			return models.Principal{}, ErrEmailExists
		}
		return models.Principal{}, apperr.Wrap(apperr.KindInternal, "internal_error", "internal server error", err)
	}

	s.log.Info().Str("principal_id", p.ID).Str("role", string(p.Role)).Msg("principal registered")
	return p, nil
}

// Refresh exchanges a valid refresh token for a new token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	p, err := s.lookup(ctx, refreshToken)
	if err != nil {
		return AuthResult{}, err
	}
	if !s.tokens.ValidateKind(refreshToken, p.Username, security.TokenRefresh) {
		return AuthResult{}, apperr.ErrInvalidToken
	}
	return s.issue(p)
}

// Authenticate resolves an access token to the caller's identity.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (models.Identity, error) {
	p, err := s.lookup(ctx, accessToken)
	if err != nil {
		return models.Identity{}, err
	}
	if !s.tokens.ValidateKind(accessToken, p.Username, security.TokenAccess) {
		return models.Identity{}, apperr.ErrInvalidToken
	}
	return models.Identity{PrincipalID: p.ID, Username: p.Username, Role: p.Role}, nil
}

func (s *AuthService) lookup(ctx context.Context, token string) (models.Principal, error) {
	subject, err := s.tokens.ParseSubject(token)
	if err != nil {
		return models.Principal{}, apperr.ErrInvalidToken
	}
	p, err := s.principals.GetByUsername(ctx, subject)
	if err != nil {
		if !errors.Is(err, repository.ErrPrincipalNotFound) {
			s.log.Error().Err(err).Msg("principal lookup failed")
		}
		return models.Principal{}, apperr.ErrInvalidToken
	}
	if !p.Active {
		return models.Principal{}, apperr.ErrInvalidToken
	}
	return p, nil
}

// UpdateRole changes a principal's role. Only Admin callers may do so.
// Setting the role a principal already has writes nothing.
func (s *AuthService) UpdateRole(ctx context.Context, caller models.Identity, principalID, role string) (models.Principal, error) {
	if !caller.IsAdmin() {
		return models.Principal{}, apperr.ErrForbidden
	}
	r, ok := models.ParseRole(strings.ToUpper(strings.TrimSpace(role)))
	if !ok {
		return models.Principal{}, ErrInvalidRole
	}

	current, err := s.principals.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			return models.Principal{}, apperr.ErrNotFound
		}
		return models.Principal{}, apperr.Wrap(apperr.KindInternal, "internal_error", "internal server error", err)
	}
	if current.Role == r {
		return current, nil
	}

	p, err := s.principals.UpdateRole(ctx, principalID, r)
	if err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			return models.Principal{}, apperr.ErrNotFound
		}
		return models.Principal{}, apperr.Wrap(apperr.KindInternal, "internal_error", "internal server error", err)
	}

	s.log.Info().
		Str("principal_id", p.ID).
		Str("previous_role", string(current.Role)).
		Str("role", string(r)).
		Str("changed_by", caller.PrincipalID).
		Msg("principal role updated")
	return p, nil
}
