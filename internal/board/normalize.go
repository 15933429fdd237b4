package board

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// seedCards lists the cards seeded into a default-board column when a board
// is created without explicit cards. Only the first column carries one.
var seedCards = map[string][]string{
	DefaultColumnNames[0]: {DefaultSeedCardTitle},
}

// Normalize turns raw client-supplied column descriptors into a canonical,
// ordered column list. An empty input produces the fixed default board.
// When enforceDefaultCard is set, columns that end up with no cards receive
// a single default card. The result always carries dense 1-based orders
// matching array position; order ties are broken by case-insensitive name.
func Normalize(inputs []ColumnInput, enforceDefaultCard bool, now time.Time) []Column {
	if len(inputs) == 0 {
		return defaultBoard(enforceDefaultCard, now)
	}

	columns := make([]Column, 0, len(inputs))
	for i, input := range inputs {
		name := resolveName(input.Name, i)

		order := i + 1
		if input.Order != nil {
			order = *input.Order
		}

		cards := normalizeCards(input.Cards, name, now)
		if len(cards) == 0 && enforceDefaultCard {
			cards = defaultCards(name, i, now)
		}

		columns = append(columns, Column{Name: name, Order: order, Cards: cards})
	}

	sortByOrder(columns)
	return reindex(columns)
}

// NormalizeCards canonicalizes a raw card list against its column name.
func NormalizeCards(inputs []CardInput, columnName string, now time.Time) []Card {
	return normalizeCards(inputs, columnName, now)
}

// Sanitize repairs a persisted column list before an edit is applied:
// blank names are refilled, cards are re-normalized against their column,
// columns are sorted by order (ties broken by case-insensitive name) and
// orders are reindexed to dense 1..N. No default cards are synthesized.
func Sanitize(columns []Column) []Column {
	out := make([]Column, len(columns))
	copy(out, columns)
	for i := range out {
		out[i].Name = resolveName(&out[i].Name, i)
		if out[i].Order <= 0 {
			out[i].Order = i + 1
		}
		out[i].Cards = sanitizeCards(out[i].Cards, out[i].Name)
	}
	sortByOrder(out)
	return reindex(out)
}

// sanitizeCards re-applies the card invariants to persisted cards: a
// non-empty title and a status mirroring the containing column.
func sanitizeCards(cards []Card, columnName string) []Card {
	out := make([]Card, 0, len(cards))
	for _, card := range cards {
		card.Title = strings.TrimSpace(card.Title)
		if card.Title == "" {
			card.Title = DefaultCardTitle
		}
		card.Status = columnName
		if card.Assignee != nil {
			if assignee := strings.TrimSpace(*card.Assignee); assignee != "" {
				card.Assignee = &assignee
			} else {
				card.Assignee = nil
			}
		}
		out = append(out, card)
	}
	return out
}

func defaultBoard(enforceDefaultCard bool, now time.Time) []Column {
	columns := make([]Column, 0, len(DefaultColumnNames))
	for i, name := range DefaultColumnNames {
		cards := []Card{}
		if enforceDefaultCard {
			for _, title := range seedCards[name] {
				cards = append(cards, Card{
					Title:       title,
					Description: "",
					Status:      name,
					Assignee:    nil,
					DueDate:     now,
				})
			}
		}
		columns = append(columns, Column{Name: name, Order: i + 1, Cards: cards})
	}
	return columns
}

// defaultCards synthesizes the cards for an empty column under
// enforceDefaultCard, merging the positional default-board seeds with the
// resolved column identity.
func defaultCards(name string, position int, now time.Time) []Card {
	if position < len(DefaultColumnNames) {
		if titles := seedCards[DefaultColumnNames[position]]; len(titles) > 0 {
			cards := make([]Card, 0, len(titles))
			for _, title := range titles {
				cards = append(cards, Card{Title: title, Status: name, DueDate: now})
			}
			return cards
		}
	}
	return []Card{{Title: DefaultCardTitle, Status: name, DueDate: now}}
}

// resolveName picks the column name: the trimmed input if present, the
// positional default-board name otherwise, "Column N" past the defaults.
func resolveName(input *string, position int) string {
	if input != nil {
		if trimmed := strings.TrimSpace(*input); trimmed != "" {
			return trimmed
		}
	}
	if position < len(DefaultColumnNames) {
		return DefaultColumnNames[position]
	}
	return fmt.Sprintf("Column %d", position+1)
}

func normalizeCards(inputs []CardInput, columnName string, now time.Time) []Card {
	cards := make([]Card, 0, len(inputs))
	for _, input := range inputs {
		cards = append(cards, normalizeCard(input, columnName, now))
	}
	return cards
}

func normalizeCard(input CardInput, columnName string, now time.Time) Card {
	card := Card{
		Title:       DefaultCardTitle,
		Description: "",
		Status:      columnName,
		Assignee:    nil,
		DueDate:     now,
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) != "" {
		card.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		card.Description = *input.Description
	}
	if input.Status != nil && strings.TrimSpace(*input.Status) != "" {
		card.Status = strings.TrimSpace(*input.Status)
	}
	if input.Assignee != nil && strings.TrimSpace(*input.Assignee) != "" {
		assignee := strings.TrimSpace(*input.Assignee)
		card.Assignee = &assignee
	}
	if input.DueDate != nil {
		if parsed, err := parseTime(*input.DueDate); err == nil {
			card.DueDate = parsed
		}
	}
	return card
}

// parseTime accepts RFC3339 with or without sub-second precision, matching
// what JavaScript's Date.toISOString() emits.
func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, value)
	}
	return t, err
}

func sortByOrder(columns []Column) {
	sort.SliceStable(columns, func(i, j int) bool {
		if columns[i].Order != columns[j].Order {
			return columns[i].Order < columns[j].Order
		}
		return strings.ToLower(columns[i].Name) < strings.ToLower(columns[j].Name)
	})
}
