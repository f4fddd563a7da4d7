package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"chat-core/internal/cache"
	"chat-core/internal/client"
	"chat-core/internal/database"
	"chat-core/internal/domain"
	"chat-core/internal/event"
	"chat-core/internal/presence"
	"chat-core/internal/repository"
)

// recordingBroadcaster captures published events instead of pushing them
// through Redis, so tests can assert exactly what was (not) broadcast.
type recordingBroadcaster struct {
	mu         sync.Mutex
	channels   map[int64][]event.Payload
	workspaces map[int64][]event.Payload
	users      map[int64][]event.Payload
	failAll    bool
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{
		channels:   make(map[int64][]event.Payload),
		workspaces: make(map[int64][]event.Payload),
		users:      make(map[int64][]event.Payload),
	}
}

func (b *recordingBroadcaster) ToChannel(ctx context.Context, channelID int64, p event.Payload) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAll {
		return errors.New("broadcast transport down")
	}
	b.channels[channelID] = append(b.channels[channelID], p)
	return nil
}

func (b *recordingBroadcaster) ToWorkspace(ctx context.Context, workspaceID int64, p event.Payload) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAll {
		return errors.New("broadcast transport down")
	}
	b.workspaces[workspaceID] = append(b.workspaces[workspaceID], p)
	return nil
}

func (b *recordingBroadcaster) ToUser(ctx context.Context, userID int64, p event.Payload) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAll {
		return errors.New("broadcast transport down")
	}
	b.users[userID] = append(b.users[userID], p)
	return nil
}

func (b *recordingBroadcaster) channelEvents(channelID int64) []event.Payload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]event.Payload(nil), b.channels[channelID]...)
}

func (b *recordingBroadcaster) workspaceEvents(workspaceID int64) []event.Payload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]event.Payload(nil), b.workspaces[workspaceID]...)
}

func (b *recordingBroadcaster) userEvents(userID int64) []event.Payload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]event.Payload(nil), b.users[userID]...)
}

// fakeUserClient serves profiles from a map; unknown users error like a 404
// from the user service would.
type fakeUserClient struct {
	users map[int64]client.UserInfo
}

func (f *fakeUserClient) GetUser(ctx context.Context, userID int64) (*client.UserInfo, error) {
	if info, ok := f.users[userID]; ok {
		return &info, nil
	}
	return nil, errors.New("user not found")
}

type testEnv struct {
	db          *gorm.DB
	mr          *miniredis.Miniredis
	rdb         *redis.Client
	workspaces  repository.WorkspaceRepository
	channels    repository.ChannelRepository
	messages    repository.MessageRepository
	statuses    repository.StatusRepository
	cache       *cache.AccessCache
	registry    *presence.Registry
	broadcaster *recordingBroadcaster
	users       *fakeUserClient

	access        *AccessService
	presence      *PresenceService
	messageSvc    *MessageService
	conversations *ConversationService
	workspaceSvc  *WorkspaceService
	channelSvc    *ChannelService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	logger := zap.NewNop()

	env := &testEnv{
		db:          db,
		mr:          mr,
		rdb:         rdb,
		workspaces:  repository.NewWorkspaceRepository(db),
		channels:    repository.NewChannelRepository(db),
		messages:    repository.NewMessageRepository(db),
		statuses:    repository.NewStatusRepository(db),
		cache:       cache.NewAccessCache(rdb, logger),
		registry:    presence.NewRegistry(rdb, logger, 30*time.Minute),
		broadcaster: newRecordingBroadcaster(),
		users:       &fakeUserClient{users: make(map[int64]client.UserInfo)},
	}

	env.access = NewAccessService(env.cache, env.channels, env.workspaces, logger)
	env.presence = NewPresenceService(env.registry, env.statuses, env.access, env.broadcaster, logger)
	env.messageSvc = NewMessageService(env.messages, env.channels, env.workspaces,
		env.access, env.presence, env.users, env.broadcaster, logger)
	env.conversations = NewConversationService(env.channels, env.workspaces, env.messages,
		env.users, env.presence, env.cache, logger)
	env.workspaceSvc = NewWorkspaceService(env.workspaces, env.cache, env.broadcaster, logger)
	env.channelSvc = NewChannelService(env.channels, env.workspaces, env.cache, logger)

	return env
}

func (e *testEnv) createWorkspace(t *testing.T, ownerID int64, name string) *domain.Workspace {
	t.Helper()
	workspace := &domain.Workspace{OwnerID: ownerID, Name: name}
	require.NoError(t, e.workspaces.CreateWorkspace(workspace))
	return workspace
}

func (e *testEnv) addMember(t *testing.T, workspaceID, userID int64) {
	t.Helper()
	require.NoError(t, e.workspaces.AddMember(&domain.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        domain.RoleMember,
	}))
}

func (e *testEnv) createPublicChannel(t *testing.T, workspaceID, creatorID int64, name string) *domain.Channel {
	t.Helper()
	channel, err := e.channelSvc.CreateChannel(context.Background(), workspaceID, creatorID, name, false)
	require.NoError(t, err)
	return channel
}

func (e *testEnv) createPrivateChannel(t *testing.T, workspaceID, creatorID int64, name string) *domain.Channel {
	t.Helper()
	channel, err := e.channelSvc.CreateChannel(context.Background(), workspaceID, creatorID, name, true)
	require.NoError(t, err)
	return channel
}
