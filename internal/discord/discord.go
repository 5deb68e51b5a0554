package discord

import (
	"context"
	"fmt"
)

// ChannelInfo is the subset of channel metadata the lifecycle needs.
type ChannelInfo struct {
	ID       string
	GuildID  string
	Name     string
	ParentID string
	IsVoice  bool
}

type VoiceStateEvent struct {
	GuildID       string
	UserID        string
	UserIsBot     bool
	BeforeChannel *ChannelInfo
	AfterChannel  *ChannelInfo
}

type ChannelEvent struct {
	Channel    ChannelInfo
	BeforeName string
}

type ThreadInput struct {
	ParentChannelID    string
	Name               string
	StarterMessage     string
	AutoArchiveMinutes int
}

type RenameButtonEvent struct {
	GuildID          string
	ThreadID         string
	UserID           string
	OpenRenameModal  func() error
	RespondEphemeral func(content string) error
}

type RenameSubmitEvent struct {
	GuildID          string
	ThreadID         string
	UserID           string
	Name             string
	RespondEphemeral func(content string) error
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	Run() error
	GetBotUserID() (string, error)
	RegisterVoiceStateUpdateHandler(handler func(VoiceStateEvent))
	RegisterChannelDeleteHandler(handler func(ChannelEvent))
	RegisterChannelUpdateHandler(handler func(ChannelEvent))
	RegisterRenameHandlers(onButton func(RenameButtonEvent), onSubmit func(RenameSubmitEvent))
	CreateThread(ctx context.Context, input ThreadInput) (string, error)
	SendMessage(ctx context.Context, channelID, content string) error
	SendRenameControl(ctx context.Context, channelID, content string) error
	ArchiveThread(ctx context.Context, threadID string) error
	RenameChannel(ctx context.Context, channelID, name string) error
	CanManageChannel(ctx context.Context, channelID, userID string) (bool, error)
}

// PermanentError marks a platform failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent platform error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func UserMention(userID string) string {
	return "<@" + userID + ">"
}

func ChannelMention(channelID string) string {
	return "<#" + channelID + ">"
}
