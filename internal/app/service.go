package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"trailcms/api/internal/auth"
	"trailcms/api/internal/authpw"
	"trailcms/api/internal/cmserr"
	"trailcms/api/internal/config"
	"trailcms/api/internal/content"
	"trailcms/api/internal/gitrepo"
	"trailcms/api/internal/pullrequest"
	"trailcms/api/internal/rbac"
	"trailcms/api/internal/store"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	Username     string
	DisplayName  string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type userStore interface {
	GetUserByID(ctx context.Context, id string) (store.User, error)
}

// sessionStore keeps refresh sessions and revoked access tokens. Both the
// PostgreSQL store and the Redis store satisfy it.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
}

type passwordAuth interface {
	Login(ctx context.Context, username, password string) (store.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
}

// HealthCheck reports the state of one dependency.
type HealthCheck func(ctx context.Context) error

type Service struct {
	cfg       config.Config
	users     userStore
	sessions  sessionStore
	passwords passwordAuth
	content   *content.Services
	pulls     *pullrequest.Service
	checks    map[string]HealthCheck
}

func New(cfg config.Config, users userStore, sessions sessionStore, passwords *authpw.Service, contentServices *content.Services, pulls *pullrequest.Service) *Service {
	return &Service{
		cfg:       cfg,
		users:     users,
		sessions:  sessions,
		passwords: passwords,
		content:   contentServices,
		pulls:     pulls,
		checks:    make(map[string]HealthCheck),
	}
}

func (s *Service) Content() *content.Services {
	return s.content
}

func (s *Service) Pulls() *pullrequest.Service {
	return s.pulls
}

// AddHealthCheck registers a dependency probed by /api/health.
func (s *Service) AddHealthCheck(name string, check HealthCheck) {
	s.checks[name] = check
}

// Health runs every registered check and reports each result by name.
func (s *Service) Health(ctx context.Context) (map[string]string, bool) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			results[name] = "error: " + err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}
	return results, healthy
}

func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	user, err := s.passwords.Login(ctx, username, password)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// session is issued with the user's current role.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Session{}, cmserr.Unauthorized("refresh token required")
	}
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, cmserr.Unauthorized("refresh token invalid")
	}
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	claims := auth.NewClaims(user.ID, user.Username, user.Role, s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), claims)
	if err != nil {
		return Session{}, err
	}

	refresh := auth.NewRefreshToken()
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, time.Now().Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		Username:     user.Username,
		DisplayName:  user.DisplayName,
		Role:         user.Role,
		JTI:          claims.JTI,
		ExpiresAt:    claims.ExpiresAt(),
	}, nil
}

// SessionFromToken validates an access token. The role is re-read from the
// user store so that role changes apply before the token expires.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, cmserr.Wrap(cmserr.KindUnauthorized, err, "invalid or expired token")
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, cmserr.Unauthorized("token revoked")
	}

	user, err := s.activeUser(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:       token,
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		JTI:         claims.JTI,
		ExpiresAt:   claims.ExpiresAt(),
	}, nil
}

func (s *Service) activeUser(ctx context.Context, userID string) (store.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, cmserr.Unauthorized("user no longer exists")
	}
	if err != nil {
		return store.User{}, err
	}
	if !user.Active() {
		return store.User{}, cmserr.Unauthorized("account deactivated")
	}
	return user, nil
}

// Logout revokes the access token of session and, if given, the refresh token.
func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		if err := s.sessions.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt); err != nil {
			return err
		}
	}
	if refreshToken != "" {
		if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			return err
		}
	}
	return nil
}

// ChangePassword replaces the password of the session's user. Other sessions
// stay valid until their tokens expire.
func (s *Service) ChangePassword(ctx context.Context, session Session, current, next string) error {
	return s.passwords.ChangePassword(ctx, session.UserID, current, next)
}

// Authorize returns a Forbidden error unless the session's role allows action.
func (s *Service) Authorize(session Session, action rbac.Action) error {
	if !rbac.Can(rbac.Normalize(session.Role), action) {
		return cmserr.Forbidden("role %s may not %s", rbac.Normalize(session.Role), action)
	}
	return nil
}

// CreatePullRequest opens a pull request on behalf of a user. The title is
// tagged with the marker so the engine keeps managing it.
func (s *Service) CreatePullRequest(ctx context.Context, base, head, title, body string) (gitrepo.PullRequest, error) {
	if base == "" {
		base = s.cfg.TrunkBranch
	}
	title = strings.TrimSpace(title)
	if title != "" && !strings.HasPrefix(title, s.pulls.Marker()) {
		title = fmt.Sprintf("%s %s", s.pulls.Marker(), title)
	}
	return s.pulls.Create(ctx, base, head, title, body)
}
