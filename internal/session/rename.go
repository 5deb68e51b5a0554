package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/foxseedlab/vcthread/internal/config"
	"github.com/foxseedlab/vcthread/internal/discord"
	"github.com/foxseedlab/vcthread/internal/telemetry"
)

const (
	maxChannelNameRunes = 100
	renameTimeout       = 30 * time.Second
)

var (
	ErrInvalidName      = errors.New("channel name must be 1 to 100 characters")
	ErrForbidden        = errors.New("member may not rename this voice channel")
	ErrDispatcherClosed = errors.New("dispatcher is closed")
)

type RenameRequest struct {
	ThreadID string
	UserID   string
	Name     string
}

// RenameHandler renames the voice channel behind a thread. The rename runs on
// the dispatcher under the voice channel key, so it cannot interleave with an
// archive of the same session.
type RenameHandler struct {
	cfg        *config.Config
	store      *Store
	dispatcher *Dispatcher
	discord    discord.Client
	metrics    *telemetry.Metrics
	retry      *retrier
}

func NewRenameHandler(cfg *config.Config, store *Store, dispatcher *Dispatcher, dc discord.Client, metrics *telemetry.Metrics) *RenameHandler {
	return &RenameHandler{
		cfg:        cfg,
		store:      store,
		dispatcher: dispatcher,
		discord:    dc,
		metrics:    metrics,
		retry:      newRetrier(cfg, metrics),
	}
}

func normalizeChannelName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxChannelNameRunes {
		return "", ErrInvalidName
	}
	return name, nil
}

func (h *RenameHandler) Rename(ctx context.Context, req RenameRequest) (VoiceSession, error) {
	s, err := h.rename(ctx, req)
	h.metrics.Renames.WithLabelValues(renameResult(err)).Inc()
	return s, err
}

func (h *RenameHandler) rename(ctx context.Context, req RenameRequest) (VoiceSession, error) {
	s, err := h.store.ActiveByThread(req.ThreadID)
	if err != nil {
		return VoiceSession{}, err
	}
	name, err := normalizeChannelName(req.Name)
	if err != nil {
		return VoiceSession{}, err
	}

	type result struct {
		session VoiceSession
		err     error
	}
	done := make(chan result, 1)
	submitted := h.dispatcher.Submit(s.VoiceChannelID, func() {
		taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), renameTimeout)
		defer cancel()
		rs, err := h.renameLocked(taskCtx, req.ThreadID, req.UserID, name)
		done <- result{session: rs, err: err}
	})
	if !submitted {
		return VoiceSession{}, ErrDispatcherClosed
	}

	select {
	case r := <-done:
		return r.session, r.err
	case <-ctx.Done():
		return VoiceSession{}, ctx.Err()
	}
}

// renameLocked runs on the voice channel's dispatcher queue.
func (h *RenameHandler) renameLocked(ctx context.Context, threadID, userID, name string) (VoiceSession, error) {
	s, err := h.store.ActiveByThread(threadID)
	if err != nil {
		return VoiceSession{}, err
	}
	if err := h.authorize(ctx, s.VoiceChannelID, userID); err != nil {
		return VoiceSession{}, err
	}
	err = h.retry.do(ctx, "rename_channel", func(ctx context.Context) error {
		return h.discord.RenameChannel(ctx, s.VoiceChannelID, name)
	})
	if err != nil {
		return VoiceSession{}, fmt.Errorf("failed to rename voice channel %s: %w", s.VoiceChannelID, err)
	}
	slog.Info("voice channel renamed", "voice_channel_id", s.VoiceChannelID, "thread_id", threadID, "user_id", userID, "name", name)
	return s, nil
}

func (h *RenameHandler) authorize(ctx context.Context, voiceChannelID, userID string) error {
	if !h.cfg.RenameRequiresManageChannels {
		return nil
	}
	ok, err := h.discord.CanManageChannel(ctx, voiceChannelID, userID)
	if err != nil {
		return fmt.Errorf("failed to check channel permissions: %w", err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (h *RenameHandler) HandleRenameButton(event discord.RenameButtonEvent) {
	s, err := h.store.ActiveByThread(event.ThreadID)
	if err != nil {
		h.respond(event.RespondEphemeral, messageEphemeralSessionGone, event.ThreadID)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), platformCommandTimeout)
	defer cancel()
	if err := h.authorize(ctx, s.VoiceChannelID, event.UserID); err != nil {
		if !errors.Is(err, ErrForbidden) {
			slog.Error("rename button permission check failed", "error", err, "thread_id", event.ThreadID, "user_id", event.UserID)
		}
		h.respond(event.RespondEphemeral, renameErrorMessage(err), event.ThreadID)
		return
	}
	if err := event.OpenRenameModal(); err != nil {
		slog.Error("failed to open rename modal", "error", err, "thread_id", event.ThreadID, "user_id", event.UserID)
	}
}

func (h *RenameHandler) HandleRenameSubmit(event discord.RenameSubmitEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), renameTimeout)
	defer cancel()

	_, err := h.Rename(ctx, RenameRequest{ThreadID: event.ThreadID, UserID: event.UserID, Name: event.Name})
	if err != nil {
		slog.Warn("rename rejected", "error", err, "thread_id", event.ThreadID, "user_id", event.UserID)
		h.respond(event.RespondEphemeral, renameErrorMessage(err), event.ThreadID)
		return
	}
	h.respond(event.RespondEphemeral, messageEphemeralRenamed, event.ThreadID)
}

func (h *RenameHandler) respond(respond func(string) error, content, threadID string) {
	if respond == nil {
		return
	}
	if err := respond(content); err != nil {
		slog.Error("failed to answer rename interaction", "error", err, "thread_id", threadID)
	}
}

func renameErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return messageEphemeralSessionGone
	case errors.Is(err, ErrForbidden):
		return messageEphemeralOwnerOnly
	case errors.Is(err, ErrInvalidName):
		return messageEphemeralInvalidName
	default:
		return messageEphemeralRenameFailed
	}
}

func renameResult(err error) string {
	switch {
	case err == nil:
		return telemetry.RenameResultOK
	case errors.Is(err, ErrSessionNotFound):
		return telemetry.RenameResultNotFound
	case errors.Is(err, ErrInvalidName):
		return telemetry.RenameResultInvalid
	case errors.Is(err, ErrForbidden):
		return telemetry.RenameResultForbidden
	default:
		return telemetry.RenameResultFailed
	}
}
