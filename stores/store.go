package stores

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// gormStore carries the query logic shared by the SQLite and PostgreSQL
// backends; only connection setup differs between them.
type gormStore struct {
	db *gorm.DB
}

func (s *gormStore) migrate() error {
	return s.db.AutoMigrate(
		&Project{}, &Room{}, &Item{},
		&Conversation{}, &Message{}, &ChatSettings{},
	)
}

// Close closes the underlying database connection.
func (s *gormStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive.
func (s *gormStore) Ping() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// CreateConversation creates a new conversation record, assigning an ID if
// the caller did not.
func (s *gormStore) CreateConversation(conv *Conversation) error {
	if conv.ConversationID == "" {
		conv.ConversationID = uuid.NewString()
	}
	if err := s.db.Create(conv).Error; err != nil {
		return &PersistenceError{Op: "create conversation", Err: err}
	}
	return nil
}

// GetConversation fetches a conversation by its external ID.
func (s *gormStore) GetConversation(conversationID string) (*Conversation, error) {
	var conv Conversation
	if err := s.db.Where("conversation_id = ?", conversationID).First(&conv).Error; err != nil {
		return nil, &PersistenceError{Op: "get conversation", Err: err}
	}
	return &conv, nil
}

// ListConversationsForUser returns a user's conversations in a project,
// most recently updated first.
func (s *gormStore) ListConversationsForUser(projectID, userID string) ([]ConversationInfo, error) {
	var convs []Conversation
	err := s.db.Where("project_id = ? AND user_id = ?", projectID, userID).
		Order("updated_at DESC").Find(&convs).Error
	if err != nil {
		return nil, &PersistenceError{Op: "list conversations", Err: err}
	}

	result := make([]ConversationInfo, len(convs))
	for i, c := range convs {
		result[i] = ConversationInfo{
			ConversationID: c.ConversationID,
			ProjectID:      c.ProjectID,
			UserID:         c.UserID,
			Title:          c.Title,
			Archived:       c.Archived,
			MessageCount:   c.MessageCount,
			CreatedAt:      c.CreatedAt.Format(time.RFC3339),
			UpdatedAt:      c.UpdatedAt.Format(time.RFC3339),
		}
	}
	return result, nil
}

// UpdateConversation changes title and/or archived; nil fields are left
// untouched. Everything else on a conversation is immutable.
func (s *gormStore) UpdateConversation(conversationID string, title *string, archived *bool) error {
	updates := map[string]interface{}{}
	if title != nil {
		updates["title"] = *title
	}
	if archived != nil {
		updates["archived"] = *archived
	}
	if len(updates) == 0 {
		return nil
	}
	res := s.db.Model(&Conversation{}).Where("conversation_id = ?", conversationID).Updates(updates)
	if res.Error != nil {
		return &PersistenceError{Op: "update conversation", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &PersistenceError{Op: "update conversation", Err: gorm.ErrRecordNotFound}
	}
	return nil
}

// DeleteConversation removes a conversation and its messages.
func (s *gormStore) DeleteConversation(conversationID string) error {
	tx := s.db.Begin()
	if err := tx.Where("conversation_id = ?", conversationID).Delete(&Message{}).Error; err != nil {
		tx.Rollback()
		return &PersistenceError{Op: "delete messages", Err: err}
	}
	if err := tx.Where("conversation_id = ?", conversationID).Delete(&Conversation{}).Error; err != nil {
		tx.Rollback()
		return &PersistenceError{Op: "delete conversation", Err: err}
	}
	if err := tx.Commit().Error; err != nil {
		return &PersistenceError{Op: "delete conversation", Err: err}
	}
	return nil
}

// ArchiveIdleConversations marks conversations untouched since idleSince as
// archived and reports how many rows changed.
func (s *gormStore) ArchiveIdleConversations(idleSince time.Time) (int64, error) {
	res := s.db.Model(&Conversation{}).
		Where("archived = ? AND updated_at < ?", false, idleSince).
		Update("archived", true)
	if res.Error != nil {
		return 0, &PersistenceError{Op: "archive idle conversations", Err: res.Error}
	}
	return res.RowsAffected, nil
}

// SaveMessage appends a message to a conversation's log, creating the
// conversation row first if this is its first message.
func (s *gormStore) SaveMessage(msg *Message) error {
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}

	var count int64
	if err := s.db.Model(&Conversation{}).Where("conversation_id = ?", msg.ConversationID).Count(&count).Error; err != nil {
		return &PersistenceError{Op: "check conversation", Err: err}
	}
	if count == 0 {
		if err := s.CreateConversation(&Conversation{ConversationID: msg.ConversationID}); err != nil {
			return err
		}
	}

	if err := s.db.Model(&Message{}).Where("conversation_id = ?", msg.ConversationID).Count(&count).Error; err != nil {
		return &PersistenceError{Op: "count messages", Err: err}
	}
	msg.Sequence = int(count) + 1

	tx := s.db.Begin()
	if err := tx.Create(msg).Error; err != nil {
		tx.Rollback()
		return &PersistenceError{Op: "save message", Err: err}
	}
	if err := tx.Model(&Conversation{}).Where("conversation_id = ?", msg.ConversationID).
		Update("message_count", msg.Sequence).Error; err != nil {
		tx.Rollback()
		return &PersistenceError{Op: "update message count", Err: err}
	}
	if err := tx.Commit().Error; err != nil {
		return &PersistenceError{Op: "save message", Err: err}
	}
	return nil
}

// FetchHistory retrieves up to limit of the most recent messages for a
// conversation, in oldest-first order. limit 0 returns all messages.
func (s *gormStore) FetchHistory(conversationID string, limit int) ([]Message, error) {
	query := s.db.Where("conversation_id = ?", conversationID).Order("sequence ASC")

	if limit > 0 {
		var count int64
		if err := s.db.Model(&Message{}).Where("conversation_id = ?", conversationID).Count(&count).Error; err != nil {
			return nil, &PersistenceError{Op: "count messages", Err: err}
		}
		if count > int64(limit) {
			query = query.Offset(int(count) - limit)
		}
	}

	var msgs []Message
	if err := query.Find(&msgs).Error; err != nil {
		return nil, &PersistenceError{Op: "fetch history", Err: err}
	}
	return msgs, nil
}

// GetSettings returns the settings row for a (project, user) pair, or
// (nil, nil) when none exists. The count-first check avoids gorm's
// record-not-found error logging on the common miss path.
func (s *gormStore) GetSettings(projectID, userID string) (*ChatSettings, error) {
	var count int64
	if err := s.db.Model(&ChatSettings{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).Count(&count).Error; err != nil {
		return nil, &PersistenceError{Op: "check settings", Err: err}
	}
	if count == 0 {
		return nil, nil
	}

	var settings ChatSettings
	if err := s.db.Where("project_id = ? AND user_id = ?", projectID, userID).First(&settings).Error; err != nil {
		return nil, &PersistenceError{Op: "get settings", Err: err}
	}
	return &settings, nil
}

// CreateSettings inserts a settings row.
func (s *gormStore) CreateSettings(settings *ChatSettings) error {
	if err := s.db.Create(settings).Error; err != nil {
		return &PersistenceError{Op: "create settings", Err: err}
	}
	return nil
}

// UpdateSettings saves every field of an existing settings row.
func (s *gormStore) UpdateSettings(settings *ChatSettings) error {
	if err := s.db.Save(settings).Error; err != nil {
		return &PersistenceError{Op: "update settings", Err: err}
	}
	return nil
}

// GetProject fetches a project by its external ID.
func (s *gormStore) GetProject(projectID string) (*Project, error) {
	var project Project
	if err := s.db.Where("project_id = ?", projectID).First(&project).Error; err != nil {
		return nil, &PersistenceError{Op: "get project", Err: err}
	}
	return &project, nil
}

// ListRooms returns a project's rooms in stored order.
func (s *gormStore) ListRooms(projectID string) ([]Room, error) {
	var rooms []Room
	if err := s.db.Where("project_id = ?", projectID).Order("id ASC").Find(&rooms).Error; err != nil {
		return nil, &PersistenceError{Op: "list rooms", Err: err}
	}
	return rooms, nil
}

// ListItems returns a room's items in stored order.
func (s *gormStore) ListItems(roomID string) ([]Item, error) {
	var items []Item
	if err := s.db.Where("room_id = ?", roomID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, &PersistenceError{Op: "list items", Err: err}
	}
	return items, nil
}

// CreateProject inserts a project, assigning an ID if absent.
func (s *gormStore) CreateProject(project *Project) error {
	if project.ProjectID == "" {
		project.ProjectID = uuid.NewString()
	}
	if err := s.db.Create(project).Error; err != nil {
		return &PersistenceError{Op: "create project", Err: err}
	}
	return nil
}

// CreateRoom inserts a room, assigning an ID if absent.
func (s *gormStore) CreateRoom(room *Room) error {
	if room.RoomID == "" {
		room.RoomID = uuid.NewString()
	}
	if err := s.db.Create(room).Error; err != nil {
		return &PersistenceError{Op: "create room", Err: err}
	}
	return nil
}

// CreateItem inserts an item, assigning an ID if absent.
func (s *gormStore) CreateItem(item *Item) error {
	if item.ItemID == "" {
		item.ItemID = uuid.NewString()
	}
	if err := s.db.Create(item).Error; err != nil {
		return &PersistenceError{Op: "create item", Err: err}
	}
	return nil
}
