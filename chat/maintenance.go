package chat

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/homewright/homewright/stores"
)

// DefaultArchiveAfter is how long a conversation may sit untouched before
// the nightly job archives it.
const DefaultArchiveAfter = 90 * 24 * time.Hour

// Maintenance runs scheduled housekeeping over the chat store. Currently a
// single nightly job that archives idle conversations so the sidebar stays
// usable on long-running projects.
type Maintenance struct {
	store        stores.ChatStore
	logger       *zap.Logger
	cron         *cron.Cron
	archiveAfter time.Duration
}

// NewMaintenance wires the maintenance scheduler. archiveAfter <= 0 falls
// back to DefaultArchiveAfter.
func NewMaintenance(store stores.ChatStore, archiveAfter time.Duration, logger *zap.Logger) *Maintenance {
	if archiveAfter <= 0 {
		archiveAfter = DefaultArchiveAfter
	}
	return &Maintenance{
		store:        store,
		logger:       logger,
		cron:         cron.New(),
		archiveAfter: archiveAfter,
	}
}

// Start schedules the jobs and starts the cron runner.
func (m *Maintenance) Start() error {
	if _, err := m.cron.AddFunc("@daily", m.archiveIdleConversations); err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for a running job to finish.
func (m *Maintenance) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

func (m *Maintenance) archiveIdleConversations() {
	cutoff := time.Now().Add(-m.archiveAfter)
	n, err := m.store.ArchiveIdleConversations(cutoff)
	if err != nil {
		m.logger.Error("failed to archive idle conversations", zap.Error(err))
		return
	}
	if n > 0 {
		m.logger.Info("archived idle conversations", zap.Int64("count", n))
	}
}
