// Package board implements the column/card normalization and reconciliation
// engine behind project boards. Everything here is pure: callers load the
// persisted column list, apply an operation, and write the result back.
package board

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultCardTitle is used for a card supplied without a title.
	DefaultCardTitle = "Scrum 1"
	// DefaultSeedCardTitle is the title of the card seeded into the first
	// default-board column on project creation.
	DefaultSeedCardTitle = "Task 1"
)

// DefaultColumnNames is the fixed default board, in order.
var DefaultColumnNames = []string{"To Do", "In Progress", "In Review", "Done"}

var (
	ErrNameRequired   = errors.New("column name is required")
	ErrColumnExists   = errors.New("column name already exists")
	ErrColumnNotFound = errors.New("column not found")
	ErrTargetRequired = errors.New("target column is required")
	ErrTargetNotFound = errors.New("target column not found")
)

type Card struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Assignee    *string   `json:"assignee"`
	DueDate     time.Time `json:"dueDate"`
}

type Column struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
	Cards []Card `json:"cards"`
}

// CardInput is a loosely-specified card as supplied by clients. Nil fields
// are absent and take defaults during normalization.
type CardInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Assignee    *string `json:"assignee"`
	DueDate     *string `json:"dueDate"`
}

// ColumnInput is a loosely-specified column descriptor.
type ColumnInput struct {
	Name  *string     `json:"name"`
	Order *int        `json:"order"`
	Cards []CardInput `json:"cards"`
}

// findColumn returns the index of the column whose name matches
// case-insensitively, or -1.
func findColumn(columns []Column, name string) int {
	needle := strings.ToLower(strings.TrimSpace(name))
	for i, column := range columns {
		if strings.ToLower(strings.TrimSpace(column.Name)) == needle {
			return i
		}
	}
	return -1
}

// reindex rewrites orders to the dense 1..N permutation matching position.
func reindex(columns []Column) []Column {
	for i := range columns {
		columns[i].Order = i + 1
	}
	return columns
}
