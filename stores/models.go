// Package stores owns persistence for Homewright: project documentation
// data (projects, rooms, items) and the chat subsystem's conversations,
// messages and per-user settings. Both SQLite and PostgreSQL are supported
// through gorm.
package stores

import (
	"gorm.io/gorm"
)

// Project is the root of a home-construction documentation tree.
type Project struct {
	gorm.Model
	ProjectID string `gorm:"uniqueIndex;not null"`
	UserID    string `gorm:"index;not null"`
	Name      string `gorm:"not null"`
	Address   string
	Builder   string
}

// Room belongs to a project.
type Room struct {
	gorm.Model
	RoomID    string `gorm:"uniqueIndex;not null"`
	ProjectID string `gorm:"index;not null"`
	Name      string `gorm:"not null"`
	Floor     string
	Notes     string `gorm:"type:text"`
}

// Item is a tracked product or finish within a room. The text fields are
// what the chat context builder searches for relevance.
type Item struct {
	gorm.Model
	ItemID           string `gorm:"uniqueIndex;not null"`
	RoomID           string `gorm:"index;not null"`
	Name             string `gorm:"not null"`
	Brand            string
	Category         string
	Specifications   string `gorm:"type:text"`
	Notes            string `gorm:"type:text"`
	Supplier         string
	WarrantyInfo     string `gorm:"type:text"`
	MaintenanceNotes string `gorm:"type:text"`
	Status           string
	Cost             float64
}

// Conversation holds metadata for a chat thread. It belongs to exactly one
// project and one user; only title, archived and timestamps ever change.
type Conversation struct {
	gorm.Model
	ConversationID string `gorm:"uniqueIndex;not null"`
	ProjectID      string `gorm:"index;not null"`
	UserID         string `gorm:"index;not null"`
	Title          string `gorm:"type:text"`
	Archived       bool   `gorm:"default:false"`
	MessageCount   int    `gorm:"default:0"`
}

// Message is one entry in a conversation's append-only log. Immutable once
// created; ordered by created_at (with Sequence as a tiebreaker) within a
// conversation.
type Message struct {
	gorm.Model
	MessageID      string `gorm:"uniqueIndex;not null"`
	ConversationID string `gorm:"index;not null"`
	Sequence       int    `gorm:"not null"`
	Role           string `gorm:"not null"` // "user", "assistant", "system"
	Content        string `gorm:"type:text"`
	// MetadataJSON stores opaque response metadata: model name, token
	// usage, finish reason.
	MetadataJSON string `gorm:"type:json"`
	TokenCount   int
}

// ChatSettings is one row per (project, user) pair, created lazily with
// defaults on first message.
type ChatSettings struct {
	gorm.Model
	ProjectID             string `gorm:"index:idx_chat_settings_project_user,unique;not null"`
	UserID                string `gorm:"index:idx_chat_settings_project_user,unique;not null"`
	Provider              string `gorm:"not null"`
	ChatModel             string `gorm:"column:chat_model;not null"`
	Temperature           float64
	MaxTokens             int
	SystemPrompt          string `gorm:"type:text"`
	RestrictToProjectData bool   `gorm:"default:true"`
	EnableWebSearch       bool   `gorm:"default:false"`
	MaxConversationLength int
}

// ConversationInfo holds conversation metadata for listing endpoints.
type ConversationInfo struct {
	ConversationID string `json:"conversation_id"`
	ProjectID      string `json:"project_id"`
	UserID         string `json:"user_id"`
	Title          string `json:"title"`
	Archived       bool   `json:"archived"`
	MessageCount   int    `json:"message_count"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}
