package store

import (
	"time"

	"taskboard/api/internal/board"
	"taskboard/api/internal/membership"
)

type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	AvatarKey    string
	IsVerified   bool
	OTPHash      string
	OTPExpiresAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ProjectStatus string

const (
	StatusCreated    ProjectStatus = "created"
	StatusInProgress ProjectStatus = "in-progress"
	StatusCompleted  ProjectStatus = "completed"
)

type BoardType string

const (
	BoardScrum  BoardType = "scrum"
	BoardKanban BoardType = "kanban"
)

// Project is the unit of persistence and access control: one row holding the
// scalar metadata plus the columns, members and invites as JSONB documents.
// Version guards every write; a stale save affects zero rows.
type Project struct {
	ID            string
	OwnerID       string
	Name          string
	Description   string
	Status        ProjectStatus
	BoardType     BoardType
	CurrentSprint string
	Columns       []board.Column
	Members       []membership.Member
	Invites       []membership.Invite
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func ValidProjectStatus(s string) bool {
	switch ProjectStatus(s) {
	case StatusCreated, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

func ValidBoardType(s string) bool {
	switch BoardType(s) {
	case BoardScrum, BoardKanban:
		return true
	}
	return false
}
