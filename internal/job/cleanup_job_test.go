package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"chat-core/internal/database"
	"chat-core/internal/domain"
	"chat-core/internal/repository"
)

func TestSweep_RemovesOnlyExpiredOrphans(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	messages := repository.NewMessageRepository(db)

	expired := &domain.Attachment{FileName: "expired.png", FileURL: "u", UploadedBy: 1}
	require.NoError(t, messages.CreateAttachment(expired))
	db.Model(expired).Update("created_at", time.Now().Add(-2*orphanRetention))

	fresh := &domain.Attachment{FileName: "fresh.png", FileURL: "u", UploadedBy: 1}
	require.NoError(t, messages.CreateAttachment(fresh))

	j := NewCleanupJob(messages, zap.NewNop())
	j.sweep()

	var remaining []domain.Attachment
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "fresh.png", remaining[0].FileName)
}

func TestStartStop(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	j := NewCleanupJob(repository.NewMessageRepository(db), zap.NewNop())
	require.NoError(t, j.Start())
	j.Stop()
}
