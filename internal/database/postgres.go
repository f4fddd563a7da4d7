package database

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chat-core/internal/config"
	"chat-core/internal/domain"
)

// NewDB opens the membership store connection, configures the pool and runs
// migrations.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.Server.Env == "dev" || cfg.Server.Env == "development" {
		logLevel = logger.Info
	}

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	createIndexes(db)

	return db, nil
}

// Connect retries NewDB until it succeeds or attempts run out.
func Connect(cfg *config.Config, attempts int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error
	for i := 0; i < attempts; i++ {
		db, err = NewDB(cfg)
		if err == nil {
			return db, nil
		}
		time.Sleep(retryInterval)
	}
	return nil, err
}

// Migrate runs schema migrations for all owned tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Workspace{},
		&domain.WorkspaceMember{},
		&domain.WorkspaceInvitation{},
		&domain.Channel{},
		&domain.ChannelMember{},
		&domain.Message{},
		&domain.Attachment{},
		&domain.UserStatus{},
	)
}

func createIndexes(db *gorm.DB) {
	// Message history reads are always (channel, newest first).
	db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_channel_created_desc
		ON messages (channel_id, created_at DESC)`)

	// Placeholder attachments awaiting a message, scanned by the cleanup job.
	db.Exec(`CREATE INDEX IF NOT EXISTS idx_attachments_orphan
		ON attachments (created_at) WHERE message_id IS NULL`)
}
