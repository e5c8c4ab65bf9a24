// Package authpw provides username/password authentication for CMS users.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"trailcms/api/internal/cmserr"
	"trailcms/api/internal/rbac"
	"trailcms/api/internal/store"
)

const minPasswordLength = 8

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,64}$`)

// UserStore defines the storage interface for auth
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) (store.User, error)
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
}

type Service struct {
	store UserStore
	cost  int
}

func NewService(userStore UserStore) *Service {
	return &Service{store: userStore, cost: bcrypt.DefaultCost}
}

// Login checks a username/password pair. Unknown users and wrong passwords
// produce the same Unauthorized error.
func (s *Service) Login(ctx context.Context, username, password string) (store.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return store.User{}, cmserr.Validation("username and password are required")
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, cmserr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return store.User{}, fmt.Errorf("login %s: %w", username, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, cmserr.Unauthorized("invalid credentials")
	}
	if !user.Active() {
		return store.User{}, cmserr.Forbidden("account %s is deactivated", username)
	}
	return user, nil
}

type CreateUserRequest struct {
	Username    string
	Password    string
	DisplayName string
	Email       string
	Role        string
}

func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (store.User, error) {
	username := strings.TrimSpace(req.Username)
	problems := make([]string, 0)
	if !usernamePattern.MatchString(username) {
		problems = append(problems, "username must be 3-64 characters of letters, digits, '.', '_' or '-'")
	}
	if len(req.Password) < minPasswordLength {
		problems = append(problems, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if !rbac.Valid(req.Role) {
		problems = append(problems, fmt.Sprintf("role must be one of viewer, editor, admin (got %q)", req.Role))
	}
	if len(problems) > 0 {
		return store.User{}, cmserr.Validation("invalid user: %s", strings.Join(problems, ", "))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = username
	}

	user, err := s.store.CreateUser(ctx, store.User{
		Username:     username,
		DisplayName:  displayName,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: string(hash),
		Role:         req.Role,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return store.User{}, cmserr.Conflict("username %s already exists", username)
	}
	if err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// ChangePassword replaces the password of userID after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < minPasswordLength {
		return cmserr.Validation("password must be at least %d characters", minPasswordLength)
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return cmserr.NotFound("user %s not found", userID)
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return cmserr.Unauthorized("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdateUserPassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
