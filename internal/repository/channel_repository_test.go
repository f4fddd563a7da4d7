package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"chat-core/internal/database"
	"chat-core/internal/domain"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func TestFindDirectChannel_PrefersGlobalOverWorkspaceScoped(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChannelRepository(db)

	workspaceID := int64(10)

	// Legacy workspace-scoped direct thread, created first.
	legacy := &domain.Channel{
		WorkspaceID: &workspaceID,
		Type:        domain.ChannelDirect,
		IsPrivate:   true,
		CreatedBy:   1,
	}
	require.NoError(t, repo.CreateChannelWithMembers(legacy, []int64{1, 2}))

	// Newer global thread for the same pair.
	global := &domain.Channel{
		Type:      domain.ChannelDirect,
		IsPrivate: true,
		CreatedBy: 2,
	}
	require.NoError(t, repo.CreateChannelWithMembers(global, []int64{1, 2}))

	found, err := repo.FindDirectChannel(1, 2)
	require.NoError(t, err)
	assert.Equal(t, global.ID, found.ID)

	// Symmetric lookup.
	found, err = repo.FindDirectChannel(2, 1)
	require.NoError(t, err)
	assert.Equal(t, global.ID, found.ID)
}

func TestFindDirectChannel_IgnoresOtherPairs(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChannelRepository(db)

	other := &domain.Channel{Type: domain.ChannelDirect, IsPrivate: true, CreatedBy: 1}
	require.NoError(t, repo.CreateChannelWithMembers(other, []int64{1, 3}))

	_, err := repo.FindDirectChannel(1, 2)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMemberIDs_SortedAscending(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChannelRepository(db)

	channel := &domain.Channel{Type: domain.ChannelGroup, IsPrivate: true, CreatedBy: 5}
	require.NoError(t, repo.CreateChannelWithMembers(channel, []int64{5, 2, 9}))

	ids, err := repo.MemberIDs(channel.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5, 9}, ids, "set comparisons rely on sorted output")
}

func TestAddMember_DuplicateHitsUniqueIndex(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChannelRepository(db)

	channel := &domain.Channel{Type: domain.ChannelGroup, IsPrivate: true, CreatedBy: 1}
	require.NoError(t, repo.CreateChannelWithMembers(channel, []int64{1, 2, 3}))

	err := repo.AddMember(channel.ID, 2)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestDeleteChannel_CascadesMessagesAndAttachments(t *testing.T) {
	db := setupTestDB(t)
	channels := NewChannelRepository(db)
	messages := NewMessageRepository(db)

	channel := &domain.Channel{Type: domain.ChannelGroup, IsPrivate: true, CreatedBy: 1}
	require.NoError(t, channels.CreateChannelWithMembers(channel, []int64{1, 2, 3}))

	attachment := &domain.Attachment{FileName: "a.png", FileURL: "u", UploadedBy: 1}
	require.NoError(t, messages.CreateAttachment(attachment))

	message := &domain.Message{ChannelID: channel.ID, AuthorID: 1, Content: "hi"}
	require.NoError(t, messages.CreateMessage(message, []int64{attachment.ID}))

	require.NoError(t, channels.DeleteChannel(channel.ID))

	_, err := channels.GetChannel(channel.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var count int64
	db.Model(&domain.Message{}).Where("channel_id = ?", channel.ID).Count(&count)
	assert.Zero(t, count)
	db.Model(&domain.Attachment{}).Count(&count)
	assert.Zero(t, count)
	db.Model(&domain.ChannelMember{}).Where("channel_id = ?", channel.ID).Count(&count)
	assert.Zero(t, count)
}

func TestFindGlobalGroupChannelsFor_FiltersScope(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChannelRepository(db)

	workspaceID := int64(10)
	scoped := &domain.Channel{WorkspaceID: &workspaceID, Type: domain.ChannelGroup, IsPrivate: true, CreatedBy: 1}
	require.NoError(t, repo.CreateChannelWithMembers(scoped, []int64{1, 2, 3}))

	global := &domain.Channel{Type: domain.ChannelGroup, IsPrivate: true, CreatedBy: 1}
	require.NoError(t, repo.CreateChannelWithMembers(global, []int64{1, 2, 4}))

	found, err := repo.FindGlobalGroupChannelsFor(1)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, global.ID, found[0].ID)
}

func TestHasSharedWorkspace(t *testing.T) {
	db := setupTestDB(t)
	workspaces := NewWorkspaceRepository(db)

	ws := &domain.Workspace{OwnerID: 1, Name: "acme"}
	require.NoError(t, workspaces.CreateWorkspace(ws))
	require.NoError(t, workspaces.AddMember(&domain.WorkspaceMember{
		WorkspaceID: ws.ID, UserID: 2, Role: domain.RoleMember,
	}))

	shared, err := workspaces.HasSharedWorkspace(1, 2)
	require.NoError(t, err)
	assert.True(t, shared)

	shared, err = workspaces.HasSharedWorkspace(1, 3)
	require.NoError(t, err)
	assert.False(t, shared)
}

func TestDeleteOrphanAttachments_OnlyReapsOldUnclaimed(t *testing.T) {
	db := setupTestDB(t)
	channels := NewChannelRepository(db)
	messages := NewMessageRepository(db)

	channel := &domain.Channel{Type: domain.ChannelGroup, IsPrivate: true, CreatedBy: 1}
	require.NoError(t, channels.CreateChannelWithMembers(channel, []int64{1, 2, 3}))

	oldOrphan := &domain.Attachment{FileName: "old.png", FileURL: "u", UploadedBy: 1}
	require.NoError(t, messages.CreateAttachment(oldOrphan))
	db.Model(oldOrphan).Update("created_at", time.Now().Add(-48*time.Hour))

	freshOrphan := &domain.Attachment{FileName: "fresh.png", FileURL: "u", UploadedBy: 1}
	require.NoError(t, messages.CreateAttachment(freshOrphan))

	claimed := &domain.Attachment{FileName: "claimed.png", FileURL: "u", UploadedBy: 1}
	require.NoError(t, messages.CreateAttachment(claimed))
	db.Model(claimed).Update("created_at", time.Now().Add(-48*time.Hour))
	message := &domain.Message{ChannelID: channel.ID, AuthorID: 1, Content: "hi"}
	require.NoError(t, messages.CreateMessage(message, []int64{claimed.ID}))

	deleted, err := messages.DeleteOrphanAttachments(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining int64
	db.Model(&domain.Attachment{}).Count(&remaining)
	assert.Equal(t, int64(2), remaining)
}
