package stores

import "time"

// ChatStore abstracts the chat subsystem's persistence: conversations,
// the append-only message log and per-user chat settings.
type ChatStore interface {
	// Conversation operations
	CreateConversation(conv *Conversation) error
	GetConversation(conversationID string) (*Conversation, error)
	ListConversationsForUser(projectID, userID string) ([]ConversationInfo, error)
	UpdateConversation(conversationID string, title *string, archived *bool) error
	DeleteConversation(conversationID string) error
	ArchiveIdleConversations(idleSince time.Time) (int64, error)

	// Message operations
	SaveMessage(msg *Message) error
	FetchHistory(conversationID string, limit int) ([]Message, error)

	// Settings operations. GetSettings returns (nil, nil) when no row
	// exists for the pair, so callers can create defaults lazily.
	GetSettings(projectID, userID string) (*ChatSettings, error)
	CreateSettings(settings *ChatSettings) error
	UpdateSettings(settings *ChatSettings) error

	// Connection management
	Close() error
	Ping() error
}

// ProjectStore abstracts read access to the documentation data the chat
// context builder draws from, plus the writes the seeding paths use.
type ProjectStore interface {
	GetProject(projectID string) (*Project, error)
	ListRooms(projectID string) ([]Room, error)
	ListItems(roomID string) ([]Item, error)

	CreateProject(project *Project) error
	CreateRoom(room *Room) error
	CreateItem(item *Item) error
}

// Store is the combined interface both backends implement.
type Store interface {
	ChatStore
	ProjectStore
}

// StoreConfig holds configuration for database stores.
type StoreConfig struct {
	Type       string            `json:"type"`       // "sqlite" or "postgres"
	Connection string            `json:"connection"` // file path or DSN
	Options    map[string]string `json:"options"`
}

// NewStoreConfig creates a new store configuration.
func NewStoreConfig(storeType, connection string) *StoreConfig {
	return &StoreConfig{
		Type:       storeType,
		Connection: connection,
		Options:    make(map[string]string),
	}
}
