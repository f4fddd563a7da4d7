package service

import "errors"

// Failure taxonomy. Not-found is always distinct from unauthorized so
// observability can tell them apart even when a client renders both the same
// way. Infrastructure failures (registry or cache unreachable) never surface
// through these; they degrade inside the presence and cache packages.
var (
	ErrWorkspaceNotFound  = errors.New("workspace not found")
	ErrChannelNotFound    = errors.New("channel not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrInvitationNotFound = errors.New("invitation not found")

	ErrNotWorkspaceMember = errors.New("user is not a member of this workspace")
	ErrNotChannelMember   = errors.New("user is not a member of this channel")

	// ErrNoSharedWorkspace marks revoked eligibility: the conversation worked
	// before, and the caller should learn why it stopped.
	ErrNoSharedWorkspace = errors.New("users do not share a workspace")

	ErrDuplicateMember     = errors.New("user is already a member")
	ErrDuplicateInvitation = errors.New("an invitation is already pending")
	ErrGroupTooLarge       = errors.New("group conversations are limited to 9 members")
	ErrGroupTooSmall       = errors.New("group conversations keep at least 2 members; delete instead")
	ErrNotGroupChannel     = errors.New("channel is not a group conversation")
	ErrSelfConversation    = errors.New("cannot start a conversation with yourself")
	ErrOwnerMustTransfer   = errors.New("ownership must be transferred before leaving the workspace")
	ErrInvalidStatus       = errors.New("invalid preferred status")
)
