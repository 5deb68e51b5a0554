package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/vcthread/internal/discord"
)

const maxThreadNameRunes = 100

type Client struct {
	session   *discordgo.Session
	token     string
	guildID   string
	botUserID string

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(token, guildID string) discordpkg.Client {
	return &Client{
		token:   token,
		guildID: guildID,
		done:    make(chan struct{}),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return err
	}
	c.session = s
	s.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates)
	s.State.TrackVoice = true
	s.State.TrackChannels = true
	// Gateway events must reach the normalizer in arrival order.
	s.SyncEvents = true

	opened := make(chan error, 1)
	go func() { opened <- s.Open() }()
	select {
	case err := <-opened:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return fmt.Errorf("discord gateway connect: %w", ctx.Err())
	}

	userID, err := c.GetBotUserID()
	if err != nil {
		return err
	}
	c.botUserID = userID
	return nil
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

// Run blocks until Close is called.
func (c *Client) Run() error {
	<-c.done
	return nil
}

func (c *Client) GetBotUserID() (string, error) {
	if c.botUserID != "" {
		return c.botUserID, nil
	}
	if c.session == nil {
		return "", fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil && c.session.State.User != nil && c.session.State.User.ID != "" {
		c.botUserID = c.session.State.User.ID
		return c.botUserID, nil
	}
	u, err := c.session.User("@me")
	if err != nil {
		return "", err
	}
	c.botUserID = u.ID
	return c.botUserID, nil
}

func (c *Client) RegisterVoiceStateUpdateHandler(handler func(discordpkg.VoiceStateEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		if vs == nil || vs.VoiceState == nil || vs.GuildID == "" || vs.UserID == "" {
			return
		}
		beforeChannelID := ""
		if vs.BeforeUpdate != nil {
			beforeChannelID = vs.BeforeUpdate.ChannelID
		}
		if beforeChannelID == vs.ChannelID {
			return
		}
		handler(discordpkg.VoiceStateEvent{
			GuildID:       vs.GuildID,
			UserID:        vs.UserID,
			UserIsBot:     c.resolveUserIsBot(vs.GuildID, vs.UserID, vs.VoiceState),
			BeforeChannel: c.channelInfoByID(vs.GuildID, beforeChannelID),
			AfterChannel:  c.channelInfoByID(vs.GuildID, vs.ChannelID),
		})
	})
}

func (c *Client) RegisterChannelDeleteHandler(handler func(discordpkg.ChannelEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, cd *discordgo.ChannelDelete) {
		if cd == nil || cd.Channel == nil {
			return
		}
		handler(discordpkg.ChannelEvent{Channel: *channelInfo(cd.Channel)})
	})
}

func (c *Client) RegisterChannelUpdateHandler(handler func(discordpkg.ChannelEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, cu *discordgo.ChannelUpdate) {
		if cu == nil || cu.Channel == nil {
			return
		}
		beforeName := ""
		if cu.BeforeUpdate != nil {
			beforeName = cu.BeforeUpdate.Name
		}
		handler(discordpkg.ChannelEvent{Channel: *channelInfo(cu.Channel), BeforeName: beforeName})
	})
}

func (c *Client) CreateThread(ctx context.Context, input discordpkg.ThreadInput) (string, error) {
	starter, err := c.session.ChannelMessageSendComplex(input.ParentChannelID, &discordgo.MessageSend{
		Content:         input.StarterMessage,
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", classifyError(fmt.Errorf("failed to post thread starter message: %w", err))
	}
	thread, err := c.session.MessageThreadStartComplex(input.ParentChannelID, starter.ID, &discordgo.ThreadStart{
		Name:                truncateRunes(input.Name, maxThreadNameRunes),
		AutoArchiveDuration: input.AutoArchiveMinutes,
		Type:                discordgo.ChannelTypeGuildPublicThread,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", classifyError(fmt.Errorf("failed to start thread: %w", err))
	}
	return thread.ID, nil
}

func (c *Client) SendMessage(ctx context.Context, channelID, content string) error {
	_, err := c.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         content,
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}},
	}, discordgo.WithContext(ctx))
	return classifyError(err)
}

func (c *Client) SendRenameControl(ctx context.Context, channelID, content string) error {
	_, err := c.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         content,
		Components:      renameControlComponents(),
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers}},
	}, discordgo.WithContext(ctx))
	return classifyError(err)
}

func (c *Client) ArchiveThread(ctx context.Context, threadID string) error {
	archived := true
	_, err := c.session.ChannelEdit(threadID, &discordgo.ChannelEdit{Archived: &archived}, discordgo.WithContext(ctx))
	return classifyError(err)
}

func (c *Client) RenameChannel(ctx context.Context, channelID, name string) error {
	_, err := c.session.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx))
	return classifyError(err)
}

func (c *Client) CanManageChannel(ctx context.Context, channelID, userID string) (bool, error) {
	perms, err := c.session.State.UserChannelPermissions(userID, channelID)
	if err != nil {
		// Members are not cached without the privileged members intent.
		perms, err = c.session.UserChannelPermissions(userID, channelID, discordgo.WithContext(ctx))
		if err != nil {
			return false, classifyError(err)
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return true, nil
	}
	return perms&discordgo.PermissionManageChannels != 0, nil
}

// classifyError marks 4xx REST failures other than rate limits as permanent.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Response == nil {
		return err
	}
	code := restErr.Response.StatusCode
	if code >= http.StatusBadRequest && code < http.StatusInternalServerError && code != http.StatusTooManyRequests {
		return &discordpkg.PermanentError{Err: err}
	}
	return err
}

func channelInfo(ch *discordgo.Channel) *discordpkg.ChannelInfo {
	return &discordpkg.ChannelInfo{
		ID:       ch.ID,
		GuildID:  ch.GuildID,
		Name:     ch.Name,
		ParentID: ch.ParentID,
		IsVoice:  ch.Type == discordgo.ChannelTypeGuildVoice,
	}
}

func (c *Client) channelInfoByID(guildID, channelID string) *discordpkg.ChannelInfo {
	if channelID == "" {
		return nil
	}
	if ch := c.resolveChannel(channelID); ch != nil {
		return channelInfo(ch)
	}
	// A channel that is already gone still identifies a leave.
	return &discordpkg.ChannelInfo{ID: channelID, GuildID: guildID}
}

// resolveChannel reads only the state cache; handlers run on the gateway
// read loop and must not wait on REST.
func (c *Client) resolveChannel(channelID string) *discordgo.Channel {
	if c.session == nil || c.session.State == nil {
		return nil
	}
	channel, err := c.session.State.Channel(channelID)
	if err != nil {
		return nil
	}
	return channel
}

func (c *Client) resolveUserIsBot(guildID, userID string, state *discordgo.VoiceState) bool {
	if state != nil && state.Member != nil && state.Member.User != nil {
		return state.Member.User.Bot
	}
	if c.session == nil || c.session.State == nil {
		return false
	}
	if c.session.State.User != nil && c.session.State.User.ID == userID {
		return true
	}
	member, err := c.session.State.Member(guildID, userID)
	if err != nil || member.User == nil {
		return false
	}
	return member.User.Bot
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
