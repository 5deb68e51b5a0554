package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/foxseedlab/vcthread/internal/config"
	"github.com/foxseedlab/vcthread/internal/discord"
	"github.com/foxseedlab/vcthread/internal/repository"
	"github.com/foxseedlab/vcthread/internal/telemetry"
	"github.com/foxseedlab/vcthread/internal/webhook"
	"github.com/google/uuid"
)

const afterArchiveTimeout = 10 * time.Second

// Coordinator drives each voice channel through Absent -> Active ->
// Archiving -> Absent. Events for one voice channel are handled in arrival
// order on the dispatcher; the store is the only shared state.
type Coordinator struct {
	cfg        *config.Config
	store      *Store
	normalizer *Normalizer
	dispatcher *Dispatcher
	discord    discord.Client
	history    repository.HistoryRepository
	webhook    webhook.Sender
	metrics    *telemetry.Metrics
	retry      *retrier
	loc        *time.Location
	now        func() time.Time
	newEventID func() string
}

func NewCoordinator(cfg *config.Config, store *Store, dispatcher *Dispatcher, dc discord.Client, history repository.HistoryRepository, wh webhook.Sender, metrics *telemetry.Metrics) *Coordinator {
	return &Coordinator{
		cfg:        cfg,
		store:      store,
		normalizer: NewNormalizer(cfg, store),
		dispatcher: dispatcher,
		discord:    dc,
		history:    history,
		webhook:    wh,
		metrics:    metrics,
		retry:      newRetrier(cfg, metrics),
		loc:        cfg.SummaryLocation(),
		now:        time.Now,
		newEventID: uuid.NewString,
	}
}

func (c *Coordinator) SetBotUserID(userID string) {
	c.normalizer.SetBotUserID(userID)
}

func (c *Coordinator) HandleVoiceStateUpdate(event discord.VoiceStateEvent) {
	slog.Debug("voice state update received", "guild_id", event.GuildID, "user_id", event.UserID)
	c.dispatch(c.normalizer.NormalizeVoiceState(event))
}

func (c *Coordinator) HandleChannelDelete(event discord.ChannelEvent) {
	slog.Debug("channel delete received", "channel_id", event.Channel.ID)
	c.dispatch(c.normalizer.NormalizeChannelDelete(event))
}

func (c *Coordinator) HandleChannelUpdate(event discord.ChannelEvent) {
	c.dispatch(c.normalizer.NormalizeChannelUpdate(event))
}

func (c *Coordinator) dispatch(events []Event) {
	for _, ev := range events {
		if !c.dispatcher.Submit(ev.VoiceChannelID, func() { c.Process(context.Background(), ev) }) {
			slog.Warn("dropping lifecycle event after shutdown", "kind", ev.Kind.String(), "voice_channel_id", ev.VoiceChannelID)
		}
	}
}

// Shutdown stops consuming new events and waits for queued ones.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.dispatcher.Close()
	return c.dispatcher.Wait(ctx)
}

// Process applies one event. Callers must serialize calls per voice channel.
func (c *Coordinator) Process(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = c.now()
	}
	switch ev.Kind {
	case EventVoiceChannelAppeared:
		c.onAppeared(ctx, ev)
	case EventMemberJoined:
		c.onMemberJoined(ctx, ev)
	case EventMemberLeft:
		c.onMemberLeft(ev)
	case EventVoiceChannelRenamed:
		c.onRenamed(ctx, ev)
	case EventVoiceChannelRemoved:
		c.onRemoved(ctx, ev)
	default:
		slog.Warn("unknown lifecycle event", "kind", int(ev.Kind), "voice_channel_id", ev.VoiceChannelID)
	}
}

func (c *Coordinator) onAppeared(ctx context.Context, ev Event) {
	if _, ok := c.store.Get(ev.VoiceChannelID); ok {
		c.metrics.DuplicateEvents.WithLabelValues(ev.Kind.String()).Inc()
		slog.Debug("voice channel already tracked; ignoring appearance", "voice_channel_id", ev.VoiceChannelID)
		return
	}

	name := ev.VoiceChannelName
	if name == "" {
		name = fallbackChannelName
	}
	threadID, err := retryValue(ctx, c.retry, "create_thread", func(ctx context.Context) (string, error) {
		return c.discord.CreateThread(ctx, discord.ThreadInput{
			ParentChannelID:    c.cfg.ThreadChannelID,
			Name:               name,
			StarterMessage:     announcementMessage(ev.MemberID, ev.VoiceChannelID),
			AutoArchiveMinutes: c.cfg.ThreadAutoArchiveMinutes,
		})
	})
	if err != nil {
		c.metrics.ThreadCreateFailures.Inc()
		slog.Error("failed to create thread; voice channel left untracked", "error", err, "voice_channel_id", ev.VoiceChannelID)
		return
	}

	if err := c.store.Create(ev.VoiceChannelID, name, threadID, ev.At); err != nil {
		slog.Error("failed to record session; archiving surplus thread", "error", err, "voice_channel_id", ev.VoiceChannelID, "thread_id", threadID)
		c.bestEffort(ctx, "archive_thread", ev.VoiceChannelID, func(ctx context.Context) error {
			return c.discord.ArchiveThread(ctx, threadID)
		})
		return
	}
	c.metrics.ThreadsCreated.Inc()
	c.metrics.ActiveSessions.Set(float64(c.store.Len()))
	slog.Info("voice session started", "voice_channel_id", ev.VoiceChannelID, "thread_id", threadID, "creator_id", ev.MemberID)

	c.bestEffort(ctx, "send_vc_link", ev.VoiceChannelID, func(ctx context.Context) error {
		return c.discord.SendMessage(ctx, ev.VoiceChannelID, vcChatLinkMessage(threadID))
	})
	c.bestEffort(ctx, "send_rename_control", ev.VoiceChannelID, func(ctx context.Context) error {
		return c.discord.SendRenameControl(ctx, threadID, welcomeMessage(ev.MemberID, name))
	})
}

func (c *Coordinator) onMemberJoined(ctx context.Context, ev Event) {
	firstSeen, err := c.store.RecordJoin(ev.VoiceChannelID, ev.MemberID)
	if err != nil {
		slog.Debug("dropping join for inactive voice channel", "error", err, "voice_channel_id", ev.VoiceChannelID, "user_id", ev.MemberID)
		return
	}
	if !firstSeen || !c.cfg.ThreadJoinNotice {
		return
	}
	s, ok := c.store.Get(ev.VoiceChannelID)
	if !ok || len(s.Participants) <= 1 {
		return
	}
	c.bestEffort(ctx, "send_join_notice", ev.VoiceChannelID, func(ctx context.Context) error {
		return c.discord.SendMessage(ctx, s.ThreadID, joinedMessage(ev.MemberID))
	})
}

func (c *Coordinator) onMemberLeft(ev Event) {
	if err := c.store.RecordLeave(ev.VoiceChannelID, ev.MemberID); err != nil {
		slog.Debug("dropping leave for inactive voice channel", "error", err, "voice_channel_id", ev.VoiceChannelID, "user_id", ev.MemberID)
	}
}

func (c *Coordinator) onRenamed(ctx context.Context, ev Event) {
	s, ok := c.store.Get(ev.VoiceChannelID)
	if !ok || s.Archiving || s.VoiceChannelName == ev.VoiceChannelName {
		return
	}
	if err := c.store.Rename(ev.VoiceChannelID, ev.VoiceChannelName); err != nil {
		return
	}
	err := c.retry.do(ctx, "rename_thread", func(ctx context.Context) error {
		return c.discord.RenameChannel(ctx, s.ThreadID, ev.VoiceChannelName)
	})
	if err != nil {
		slog.Error("failed to rename thread after voice channel rename", "error", err, "voice_channel_id", ev.VoiceChannelID, "thread_id", s.ThreadID)
		return
	}
	slog.Info("thread renamed to follow voice channel", "voice_channel_id", ev.VoiceChannelID, "thread_id", s.ThreadID, "name", ev.VoiceChannelName)
}

func (c *Coordinator) onRemoved(ctx context.Context, ev Event) {
	s, err := c.store.BeginArchive(ev.VoiceChannelID)
	switch {
	case errors.Is(err, ErrNotFound):
		slog.Debug("ignoring removal of untracked voice channel", "voice_channel_id", ev.VoiceChannelID)
		return
	case errors.Is(err, ErrAlreadyArchiving):
		c.metrics.DuplicateEvents.WithLabelValues(ev.Kind.String()).Inc()
		slog.Debug("voice channel already archiving; ignoring removal", "voice_channel_id", ev.VoiceChannelID)
		return
	case err != nil:
		slog.Error("failed to begin archive", "error", err, "voice_channel_id", ev.VoiceChannelID)
		return
	}

	sum := newSessionSummary(s, ev.At)
	summaryErr := c.retry.do(ctx, "send_summary", func(ctx context.Context) error {
		return c.discord.SendMessage(ctx, s.ThreadID, buildSummaryText(sum, c.cfg.SummaryTimezone, c.loc))
	})
	if summaryErr != nil {
		slog.Error("failed to post session summary", "error", summaryErr, "voice_channel_id", s.VoiceChannelID, "thread_id", s.ThreadID)
	}
	archiveErr := c.retry.do(ctx, "archive_thread", func(ctx context.Context) error {
		return c.discord.ArchiveThread(ctx, s.ThreadID)
	})
	if archiveErr != nil {
		slog.Error("failed to archive thread", "error", archiveErr, "voice_channel_id", s.VoiceChannelID, "thread_id", s.ThreadID)
	}

	c.store.Remove(s.VoiceChannelID)
	c.metrics.ActiveSessions.Set(float64(c.store.Len()))
	if summaryErr != nil || archiveErr != nil {
		c.metrics.ArchiveFailures.Inc()
	}
	if archiveErr == nil {
		c.metrics.ThreadsArchived.Inc()
	}
	c.metrics.SessionDuration.Observe(sum.duration.Seconds())
	c.metrics.SessionParticipants.Observe(float64(len(s.Participants)))
	slog.Info("voice session ended",
		"voice_channel_id", s.VoiceChannelID,
		"thread_id", s.ThreadID,
		"duration_seconds", sum.durationSeconds(),
		"participants", len(s.Participants),
		"archived", archiveErr == nil)

	c.afterArchive(ctx, sum, archiveErr == nil)
}

func (c *Coordinator) afterArchive(ctx context.Context, sum sessionSummary, archived bool) {
	ctx, cancel := context.WithTimeout(ctx, afterArchiveTimeout)
	defer cancel()

	status := repository.ArchiveStatusArchived
	if !archived {
		status = repository.ArchiveStatusFailed
	}
	if _, err := c.history.SaveArchivedSession(ctx, repository.SaveArchivedSessionInput{
		GuildID:          c.cfg.DiscordGuildID,
		VoiceChannelID:   sum.session.VoiceChannelID,
		VoiceChannelName: sum.session.VoiceChannelName,
		ThreadID:         sum.session.ThreadID,
		StartedAt:        sum.session.StartedAt,
		EndedAt:          sum.endedAt,
		ParticipantIDs:   sum.session.Participants,
		Status:           status,
	}); err != nil {
		slog.Error("failed to save session history", "error", err, "voice_channel_id", sum.session.VoiceChannelID)
	}

	payload := buildSummaryWebhookPayload(c.newEventID(), c.cfg.DiscordGuildID, sum, c.cfg.SummaryTimezone, c.loc, archived)
	if err := c.webhook.SendSessionSummary(ctx, payload); err != nil {
		slog.Error("failed to send summary webhook", "error", err, "voice_channel_id", sum.session.VoiceChannelID, "event_id", payload.EventID)
	}
}

func (c *Coordinator) bestEffort(ctx context.Context, operation, voiceChannelID string, fn func(ctx context.Context) error) {
	if err := c.retry.do(ctx, operation, fn); err != nil {
		slog.Warn("platform command failed", "operation", operation, "error", err, "voice_channel_id", voiceChannelID)
	}
}
