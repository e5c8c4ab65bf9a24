package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a looked-up user or session does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate is returned when a username is already taken.
var ErrDuplicate = errors.New("store: duplicate")

type User struct {
	ID            string
	Username      string
	DisplayName   string
	Email         string
	PasswordHash  string
	Role          string
	DeactivatedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (u User) Active() bool {
	return u.DeactivatedAt == nil
}
