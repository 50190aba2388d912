// Package chat implements the chat assistant: assembling project context,
// orchestrating a message turn against the configured LLM provider, and
// background conversation maintenance.
package chat

import (
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/homewright/homewright/stores"
)

const (
	// contextCharLimit bounds the rendered project context injected into
	// the system prompt.
	contextCharLimit = 3000

	// truncationMarker is appended whenever the context was cut off.
	truncationMarker = "\n[context truncated]"

	// fallbackItemCount is how many items to include when no item matches
	// the query keywords. Deliberately the first N in stored order, not a
	// ranked selection.
	fallbackItemCount = 10

	// minKeywordLen filters out short stopwords when tokenizing the query.
	minKeywordLen = 3
)

// contextItem is an item tagged with the name of its room.
type contextItem struct {
	stores.Item
	RoomName string
}

// ContextBuilder renders a bounded-size text description of the parts of a
// project most relevant to the user's question.
type ContextBuilder struct {
	projects stores.ProjectStore
	logger   *zap.Logger
}

// NewContextBuilder wires a context builder over the project store.
func NewContextBuilder(projects stores.ProjectStore, logger *zap.Logger) *ContextBuilder {
	return &ContextBuilder{projects: projects, logger: logger}
}

// Build gathers project, rooms and items, filters items by keyword
// relevance to the query, and renders a text block capped at the character
// budget. Fetch failures degrade to partial data rather than failing the
// build: a degraded context is preferable to blocking the chat.
func (b *ContextBuilder) Build(projectID, query string) string {
	var sb strings.Builder

	project, err := b.projects.GetProject(projectID)
	if err != nil {
		b.logger.Warn("context: failed to load project, continuing without header",
			zap.String("project_id", projectID), zap.Error(err))
	} else {
		sb.WriteString(fmt.Sprintf("Project: %s\n", project.Name))
		if project.Address != "" {
			sb.WriteString(fmt.Sprintf("Address: %s\n", project.Address))
		}
		if project.Builder != "" {
			sb.WriteString(fmt.Sprintf("Builder: %s\n", project.Builder))
		}
	}

	rooms, err := b.projects.ListRooms(projectID)
	if err != nil {
		b.logger.Warn("context: failed to load rooms",
			zap.String("project_id", projectID), zap.Error(err))
		rooms = nil
	}

	if len(rooms) > 0 {
		names := make([]string, len(rooms))
		for i, r := range rooms {
			names[i] = r.Name
		}
		sb.WriteString(fmt.Sprintf("Rooms: %s\n", strings.Join(names, ", ")))
	}

	var all []contextItem
	for _, room := range rooms {
		items, err := b.projects.ListItems(room.RoomID)
		if err != nil {
			b.logger.Warn("context: failed to load items for room, skipping",
				zap.String("room_id", room.RoomID), zap.Error(err))
			continue
		}
		for _, item := range items {
			all = append(all, contextItem{Item: item, RoomName: room.Name})
		}
	}

	selected := selectItems(all, query)
	if len(selected) > 0 {
		sb.WriteString("Items:\n")
		for _, item := range selected {
			sb.WriteString(renderItem(item))
		}
	}

	return truncate(sb.String(), contextCharLimit)
}

// selectItems returns the items relevant to the query, or the first N in
// stored order when nothing matches or the query is too short to filter on.
func selectItems(items []contextItem, query string) []contextItem {
	keywords := queryKeywords(query)

	if len(keywords) > 0 {
		var relevant []contextItem
		for _, item := range items {
			if itemMatches(item, keywords) {
				relevant = append(relevant, item)
			}
		}
		if len(relevant) > 0 {
			return relevant
		}
	}

	if len(items) > fallbackItemCount {
		return items[:fallbackItemCount]
	}
	return items
}

// queryKeywords tokenizes the query into lowercase words longer than two
// characters.
func queryKeywords(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	var keywords []string
	for _, w := range words {
		if len(w) >= minKeywordLen {
			keywords = append(keywords, w)
		}
	}
	return keywords
}

// itemMatches reports whether any searchable field contains any keyword,
// case-insensitively.
func itemMatches(item contextItem, keywords []string) bool {
	fields := []string{
		item.Name, item.Brand, item.Category, item.Specifications,
		item.Notes, item.RoomName, item.Supplier, item.WarrantyInfo,
		item.MaintenanceNotes, item.Status,
	}
	for _, field := range fields {
		if field == "" {
			continue
		}
		lower := strings.ToLower(field)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

func renderItem(item contextItem) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("- %s (%s)", item.Name, item.RoomName))
	if item.Brand != "" {
		sb.WriteString(", brand: " + item.Brand)
	}
	if item.Category != "" {
		sb.WriteString(", category: " + item.Category)
	}
	if item.Status != "" {
		sb.WriteString(", status: " + item.Status)
	}
	if item.Specifications != "" {
		sb.WriteString(", specs: " + item.Specifications)
	}
	if item.Notes != "" {
		sb.WriteString(", notes: " + item.Notes)
	}
	sb.WriteString("\n")
	return sb.String()
}

// truncate cuts text to the budget and appends the marker. The result is at
// most limit+len(marker) characters and always ends with the marker when
// truncation happened.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + truncationMarker
}
