package board

import (
	"strings"
	"time"
)

// Insert adds a new column. The name must be non-empty and unique
// (case-insensitive). The requested 1-based order picks the insertion
// position, clamped into range; absent or non-positive orders append.
func Insert(columns []Column, input ColumnInput, now time.Time) ([]Column, Column, error) {
	name := ""
	if input.Name != nil {
		name = strings.TrimSpace(*input.Name)
	}
	if name == "" {
		return columns, Column{}, ErrNameRequired
	}
	if findColumn(columns, name) >= 0 {
		return columns, Column{}, ErrColumnExists
	}

	column := Column{
		Name:  name,
		Cards: normalizeCards(input.Cards, name, now),
	}

	index := len(columns)
	if input.Order != nil && *input.Order > 0 {
		index = *input.Order - 1
		if index > len(columns) {
			index = len(columns)
		}
	}

	out := make([]Column, 0, len(columns)+1)
	out = append(out, columns[:index]...)
	out = append(out, column)
	out = append(out, columns[index:]...)
	out = reindex(out)
	return out, out[index], nil
}

// Rename changes a column's name and rewrites the status of every card it
// holds, keeping the status-mirrors-column-name invariant.
func Rename(columns []Column, name, newName string) ([]Column, error) {
	index := findColumn(columns, name)
	if index < 0 {
		return columns, ErrColumnNotFound
	}
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return columns, ErrNameRequired
	}
	if existing := findColumn(columns, newName); existing >= 0 && existing != index {
		return columns, ErrColumnExists
	}

	columns[index].Name = newName
	for i := range columns[index].Cards {
		columns[index].Cards[i].Status = newName
	}
	return columns, nil
}

// ReplaceCards swaps a column's card list for the normalized form of the
// supplied cards. There is no merge with the previous list.
func ReplaceCards(columns []Column, name string, cards []CardInput, now time.Time) ([]Column, error) {
	index := findColumn(columns, name)
	if index < 0 {
		return columns, ErrColumnNotFound
	}
	columns[index].Cards = normalizeCards(cards, columns[index].Name, now)
	return columns, nil
}

// Reorder moves a column to the given 1-based position, clamped into range.
func Reorder(columns []Column, name string, position int) ([]Column, error) {
	index := findColumn(columns, name)
	if index < 0 {
		return columns, ErrColumnNotFound
	}

	column := columns[index]
	rest := make([]Column, 0, len(columns)-1)
	rest = append(rest, columns[:index]...)
	rest = append(rest, columns[index+1:]...)

	target := position - 1
	if target < 0 {
		target = 0
	}
	if target > len(rest) {
		target = len(rest)
	}

	out := make([]Column, 0, len(columns))
	out = append(out, rest[:target]...)
	out = append(out, column)
	out = append(out, rest[target:]...)
	return reindex(out), nil
}

// Delete removes a column. A column still holding cards requires a
// targetColumn among the remaining columns; its cards are migrated there
// with their status rewritten to the destination name. No card is ever
// dropped silently.
func Delete(columns []Column, name, targetColumn string) ([]Column, Column, error) {
	index := findColumn(columns, name)
	if index < 0 {
		return columns, Column{}, ErrColumnNotFound
	}
	removed := columns[index]

	rest := make([]Column, 0, len(columns)-1)
	rest = append(rest, columns[:index]...)
	rest = append(rest, columns[index+1:]...)

	if len(removed.Cards) > 0 {
		if strings.TrimSpace(targetColumn) == "" {
			return columns, Column{}, ErrTargetRequired
		}
		targetIndex := findColumn(rest, targetColumn)
		if targetIndex < 0 {
			return columns, Column{}, ErrTargetNotFound
		}
		for _, card := range removed.Cards {
			card.Status = rest[targetIndex].Name
			rest[targetIndex].Cards = append(rest[targetIndex].Cards, card)
		}
	}

	return reindex(rest), removed, nil
}
