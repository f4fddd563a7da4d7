package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"chat-core/internal/client"
	"chat-core/internal/domain"
)

func TestStartDirectMessage_SamePairResolvesToOneChannel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ws := env.createWorkspace(t, 1, "acme")
	env.addMember(t, ws.ID, 2)

	first, err := env.conversations.StartDirectMessage(ctx, 1, 2, nil)
	require.NoError(t, err)

	// Same pair, opposite direction: must land on the same channel.
	second, err := env.conversations.StartDirectMessage(ctx, 2, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ChannelID, second.ChannelID)

	count, err := env.channels.MemberCount(first.ChannelID)
	require.NoError(t, err)
	assert.Equal(t, int64(domain.DirectMemberCount), count)
}

func TestStartDirectMessage_ChannelIsGlobal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ws := env.createWorkspace(t, 1, "acme")
	env.addMember(t, ws.ID, 2)

	view, err := env.conversations.StartDirectMessage(ctx, 1, 2, &ws.ID)
	require.NoError(t, err)

	channel, err := env.channels.GetChannel(view.ChannelID)
	require.NoError(t, err)
	assert.True(t, channel.IsGlobal(), "direct channels live outside any workspace")
	assert.Equal(t, domain.ChannelDirect, channel.Type)
}

func TestStartDirectMessage_RequiresSharedWorkspace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createWorkspace(t, 1, "acme")
	env.createWorkspace(t, 2, "globex")

	_, err := env.conversations.StartDirectMessage(ctx, 1, 2, nil)
	assert.ErrorIs(t, err, ErrNoSharedWorkspace)
}

func TestStartDirectMessage_RejectsSelf(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.conversations.StartDirectMessage(context.Background(), 1, 1, nil)
	assert.ErrorIs(t, err, ErrSelfConversation)
}

func TestStartDirectMessage_WorkspaceHintRequiresBothMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	shared := env.createWorkspace(t, 1, "acme")
	env.addMember(t, shared.ID, 2)
	other := env.createWorkspace(t, 1, "solo")

	// They do share a workspace, but user 2 is not in the hinted one.
	_, err := env.conversations.StartDirectMessage(ctx, 1, 2, &other.ID)
	assert.ErrorIs(t, err, ErrNotWorkspaceMember)
}

func TestStartDirectMessage_ViewShowsOtherUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ws := env.createWorkspace(t, 1, "acme")
	env.addMember(t, ws.ID, 2)
	env.users.users[2] = client.UserInfo{UserID: 2, Name: "Bob"}

	view, err := env.conversations.StartDirectMessage(ctx, 1, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), view.OtherUserID)
	assert.Equal(t, "Bob", view.OtherUserName)
	assert.Equal(t, domain.StatusOffline, view.OtherUserStatus, "no live connection means offline")
}

func TestCreateGroupDM_SameMemberSetResolvesToOneChannel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ws := env.createWorkspace(t, 1, "acme")
	env.addMember(t, ws.ID, 2)
	env.addMember(t, ws.ID, 3)

	first, err := env.conversations.CreateGroupDM(ctx, 1, []int64{2, 3}, "")
	require.NoError(t, err)

	// Different creator, different listing order, identical member set.
	second, err := env.conversations.CreateGroupDM(ctx, 3, []int64{2, 1}, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateGroupDM_SizeBounds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ws := env.createWorkspace(t, 1, "acme")
	for id := int64(2); id <= 12; id++ {
		env.addMember(t, ws.ID, id)
	}

	_, err := env.conversations.CreateGroupDM(ctx, 1, []int64{2}, "")
	assert.ErrorIs(t, err, ErrGroupTooSmall)

	_, err = env.conversations.CreateGroupDM(ctx, 1, []int64{2, 3, 4, 5, 6, 7, 8, 9, 10}, "")
	assert.ErrorIs(t, err, ErrGroupTooLarge)

	// Exactly at the cap: creator plus eight.
	channel, err := env.conversations.CreateGroupDM(ctx, 1, []int64{2, 3, 4, 5, 6, 7, 8, 9}, "")
	require.NoError(t, err)

	count, err := env.channels.MemberCount(channel.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(domain.GroupMaxMembers), count)
}

func TestCreateGroupDM_RejectsDuplicateAndCreatorInList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ws := env.createWorkspace(t, 1, "acme")
	env.addMember(t, ws.ID, 2)
	env.addMember(t, ws.ID, 3)

	_, err := env.conversations.CreateGroupDM(ctx, 1, []int64{2, 2}, "")
	assert.ErrorIs(t, err, ErrDuplicateMember)

	_, err = env.conversations.CreateGroupDM(ctx, 1, []int64{1, 2}, "")
	assert.ErrorIs(t, err, ErrDuplicateMember)
}

func TestCreateGroupDM_EveryMemberMustShareWorkspaceWithCreator(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ws := env.createWorkspace(t, 1, "acme")
	env.addMember(t, ws.ID, 2)
	env.createWorkspace(t, 3, "globex")

	_, err := env.conversations.CreateGroupDM(ctx, 1, []int64{2, 3}, "")
	assert.ErrorIs(t, err, ErrNoSharedWorkspace)
}

func TestCreateGroupDM_GeneratedNames(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ws := env.createWorkspace(t, 1, "acme")
	for id := int64(2); id <= 8; id++ {
		env.addMember(t, ws.ID, id)
	}
	env.users.users[2] = client.UserInfo{UserID: 2, Name: "Ann"}
	env.users.users[3] = client.UserInfo{UserID: 3, Name: "Ben"}
	env.users.users[4] = client.UserInfo{UserID: 4, Name: "Cam"}
	env.users.users[5] = client.UserInfo{UserID: 5, Name: "Dee"}

	two, err := env.conversations.CreateGroupDM(ctx, 1, []int64{2, 3}, "")
	require.NoError(t, err)
	assert.Equal(t, "Ann and Ben", two.Name)

	three, err := env.conversations.CreateGroupDM(ctx, 1, []int64{2, 3, 4}, "")
	require.NoError(t, err)
	assert.Equal(t, "Ann, Ben, Cam", three.Name)

	many, err := env.conversations.CreateGroupDM(ctx, 1, []int64{2, 3, 4, 5}, "")
	require.NoError(t, err)
	assert.Equal(t, "Ann, Ben, Cam and 1 others", many.Name)

	// No resolvable names at all.
	unnamed, err := env.conversations.CreateGroupDM(ctx, 1, []int64{6, 7}, "")
	require.NoError(t, err)
	assert.Equal(t, "Group DM", unnamed.Name)

	explicit, err := env.conversations.CreateGroupDM(ctx, 1, []int64{6, 8}, "Project X")
	require.NoError(t, err)
	assert.Equal(t, "Project X", explicit.Name)
}

func TestAddGroupMember_EnforcesCapAndEligibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ws := env.createWorkspace(t, 1, "acme")
	for id := int64(2); id <= 10; id++ {
		env.addMember(t, ws.ID, id)
	}
	env.createWorkspace(t, 99, "elsewhere")

	group, err := env.conversations.CreateGroupDM(ctx, 1, []int64{2, 3}, "")
	require.NoError(t, err)

	require.NoError(t, env.conversations.AddGroupMember(ctx, 1, group.ID, 4))

	err = env.conversations.AddGroupMember(ctx, 1, group.ID, 4)
	assert.ErrorIs(t, err, ErrDuplicateMember)

	err = env.conversations.AddGroupMember(ctx, 99, group.ID, 5)
	assert.ErrorIs(t, err, ErrNotChannelMember, "only members may grow the group")

	err = env.conversations.AddGroupMember(ctx, 1, group.ID, 99)
	assert.ErrorIs(t, err, ErrNoSharedWorkspace)

	for id := int64(5); id <= 9; id++ {
		require.NoError(t, env.conversations.AddGroupMember(ctx, 1, group.ID, id))
	}
	err = env.conversations.AddGroupMember(ctx, 1, group.ID, 10)
	assert.ErrorIs(t, err, ErrGroupTooLarge)
}

func TestRemoveGroupMember_FloorAndDeletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ws := env.createWorkspace(t, 1, "acme")
	env.addMember(t, ws.ID, 2)
	env.addMember(t, ws.ID, 3)

	group, err := env.conversations.CreateGroupDM(ctx, 1, []int64{2, 3}, "")
	require.NoError(t, err)

	// 3 -> 2 is fine.
	require.NoError(t, env.conversations.RemoveGroupMember(ctx, 1, group.ID, 3))

	// Kicking the other member out would strand them alone.
	err = env.conversations.RemoveGroupMember(ctx, 1, group.ID, 2)
	assert.ErrorIs(t, err, ErrGroupTooSmall)

	// A self-leave at the floor winds the conversation down instead of
	// trapping the last two members in an immortal channel.
	require.NoError(t, env.conversations.RemoveGroupMember(ctx, 2, group.ID, 2))

	_, err = env.channels.GetChannel(group.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	count, err := env.channels.MemberCount(group.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	list, err := env.conversations.ListConversations(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRemoveGroupMember_RejectsNonGroupChannel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ws := env.createWorkspace(t, 1, "acme")
	env.addMember(t, ws.ID, 2)

	direct, err := env.conversations.StartDirectMessage(ctx, 1, 2, nil)
	require.NoError(t, err)

	err = env.conversations.RemoveGroupMember(ctx, 1, direct.ChannelID, 2)
	assert.ErrorIs(t, err, ErrNotGroupChannel)
}

func TestListConversations_IncludesDirectAndGroup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ws := env.createWorkspace(t, 1, "acme")
	env.addMember(t, ws.ID, 2)
	env.addMember(t, ws.ID, 3)
	env.users.users[2] = client.UserInfo{UserID: 2, Name: "Bob"}

	direct, err := env.conversations.StartDirectMessage(ctx, 1, 2, nil)
	require.NoError(t, err)
	group, err := env.conversations.CreateGroupDM(ctx, 1, []int64{2, 3}, "trio")
	require.NoError(t, err)

	list, err := env.conversations.ListConversations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)

	byID := map[int64]ConversationSummary{}
	for _, s := range list {
		byID[s.ChannelID] = s
	}
	assert.Equal(t, "Bob", byID[direct.ChannelID].Name, "direct entries use the other user's name")
	assert.Equal(t, "trio", byID[group.ID].Name)

	// Cached second read.
	cached, err := env.conversations.ListConversations(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, cached, 2)
}
