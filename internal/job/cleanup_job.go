package job

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"chat-core/internal/repository"
)

// orphanRetention is how long an unclaimed attachment placeholder survives
// before the reaper removes it. Long enough for slow composes, short enough
// that abandoned uploads don't pile up.
const orphanRetention = 24 * time.Hour

// CleanupJob periodically removes attachment rows that were uploaded but
// never attached to a message.
type CleanupJob struct {
	messages repository.MessageRepository
	logger   *zap.Logger
	cron     *cron.Cron
}

func NewCleanupJob(messages repository.MessageRepository, logger *zap.Logger) *CleanupJob {
	return &CleanupJob{
		messages: messages,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start schedules the hourly sweep. Returns an error only if the schedule
// expression fails to parse.
func (j *CleanupJob) Start() error {
	if _, err := j.cron.AddFunc("@hourly", j.sweep); err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts the scheduler; a sweep in flight runs to completion.
func (j *CleanupJob) Stop() {
	j.cron.Stop()
}

func (j *CleanupJob) sweep() {
	deleted, err := j.messages.DeleteOrphanAttachments(time.Now().Add(-orphanRetention))
	if err != nil {
		j.logger.Error("orphan attachment sweep failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		j.logger.Info("orphan attachments removed", zap.Int64("count", deleted))
	}
}
