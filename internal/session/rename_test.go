package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/vcthread/internal/discord"
	"github.com/foxseedlab/vcthread/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRename_RenamesVoiceChannel(t *testing.T) {
	h := newTestHarness(t)
	h.startSession(t, "vc-1", testEpoch, "A")

	s, err := h.rename.Rename(context.Background(), RenameRequest{ThreadID: "thread-1", UserID: "A", Name: "  Karaoke  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.VoiceChannelID != "vc-1" {
		t.Fatalf("unexpected session: %+v", s)
	}
	renames := h.discord.renameCalls()
	if len(renames) != 1 || renames[0] != (renameCall{channelID: "vc-1", name: "Karaoke"}) {
		t.Fatalf("unexpected renames: %+v", renames)
	}
	if len(h.discord.permission) != 1 || h.discord.permission[0] != "vc-1/A" {
		t.Fatalf("expected permission check on voice channel, got %v", h.discord.permission)
	}
	if got := testutil.ToFloat64(h.metrics().Renames.WithLabelValues(telemetry.RenameResultOK)); got != 1 {
		t.Fatalf("expected 1 successful rename, got %v", got)
	}
}

func TestRename_RejectsInvalidNames(t *testing.T) {
	h := newTestHarness(t)
	h.startSession(t, "vc-1", testEpoch, "A")

	for _, name := range []string{"", "   ", strings.Repeat("あ", maxChannelNameRunes+1)} {
		if _, err := h.rename.Rename(context.Background(), RenameRequest{ThreadID: "thread-1", UserID: "A", Name: name}); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("expected ErrInvalidName for %q, got %v", name, err)
		}
	}
	if _, err := h.rename.Rename(context.Background(), RenameRequest{ThreadID: "thread-1", UserID: "A", Name: strings.Repeat("あ", maxChannelNameRunes)}); err != nil {
		t.Fatalf("expected 100 characters to be accepted, got %v", err)
	}
	if got := len(h.discord.renameCalls()); got != 1 {
		t.Fatalf("expected only the valid rename to reach the platform, got %d", got)
	}
}

func TestRename_RequiresManageChannels(t *testing.T) {
	h := newTestHarness(t)
	h.startSession(t, "vc-1", testEpoch, "A")
	h.discord.canManage = false

	_, err := h.rename.Rename(context.Background(), RenameRequest{ThreadID: "thread-1", UserID: "B", Name: "Karaoke"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if got := len(h.discord.renameCalls()); got != 0 {
		t.Fatalf("expected no rename, got %d", got)
	}
}

func TestRename_PermissionCheckCanBeDisabled(t *testing.T) {
	h := newTestHarness(t)
	h.cfg.RenameRequiresManageChannels = false
	h.discord.canManage = false
	h.startSession(t, "vc-1", testEpoch, "A")

	if _, err := h.rename.Rename(context.Background(), RenameRequest{ThreadID: "thread-1", UserID: "B", Name: "Karaoke"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.discord.permission) != 0 {
		t.Fatalf("expected no permission checks, got %v", h.discord.permission)
	}
}

func TestRename_ArchivedSessionIsNotFound(t *testing.T) {
	h := newTestHarness(t)
	h.startSession(t, "vc-1", testEpoch, "A")
	h.coordinator.Process(context.Background(), removeEvent("vc-1", testEpoch.Add(time.Minute)))

	_, err := h.rename.Rename(context.Background(), RenameRequest{ThreadID: "thread-1", UserID: "A", Name: "Karaoke"})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if got := len(h.discord.renameCalls()); got != 0 {
		t.Fatalf("expected no rename command, got %d", got)
	}
	if got := testutil.ToFloat64(h.metrics().Renames.WithLabelValues(telemetry.RenameResultNotFound)); got != 1 {
		t.Fatalf("expected 1 not-found rename, got %v", got)
	}
}

func TestRename_QueuedBehindArchiveFailsCleanly(t *testing.T) {
	h := newTestHarness(t)
	h.startSession(t, "vc-1", testEpoch, "A")

	release := make(chan struct{})
	h.dispatcher.Submit("vc-1", func() { <-release })
	h.coordinator.HandleChannelDelete(discord.ChannelEvent{Channel: *voiceChannel("vc-1")})

	errCh := make(chan error, 1)
	go func() {
		_, err := h.rename.Rename(context.Background(), RenameRequest{ThreadID: "thread-1", UserID: "A", Name: "Karaoke"})
		errCh <- err
	}()
	close(release)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("expected ErrSessionNotFound, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("rename did not finish")
	}
	if got := len(h.discord.renameCalls()); got != 0 {
		t.Fatalf("expected no rename after archive, got %d", got)
	}
	if got := h.discord.archivedThreads(); len(got) != 1 {
		t.Fatalf("expected thread archived, got %v", got)
	}
}

func TestRename_ContextCancelledWhileQueued(t *testing.T) {
	h := newTestHarness(t)
	h.startSession(t, "vc-1", testEpoch, "A")

	release := make(chan struct{})
	defer close(release)
	h.dispatcher.Submit("vc-1", func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := h.rename.Rename(ctx, RenameRequest{ThreadID: "thread-1", UserID: "A", Name: "Karaoke"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestHandleRenameButton(t *testing.T) {
	h := newTestHarness(t)
	h.startSession(t, "vc-1", testEpoch, "A")

	var replies []string
	opened := 0
	event := func(threadID string) discord.RenameButtonEvent {
		return discord.RenameButtonEvent{
			GuildID:  "guild-1",
			ThreadID: threadID,
			UserID:   "A",
			OpenRenameModal: func() error {
				opened++
				return nil
			},
			RespondEphemeral: func(content string) error {
				replies = append(replies, content)
				return nil
			},
		}
	}

	h.rename.HandleRenameButton(event("thread-1"))
	if opened != 1 || len(replies) != 0 {
		t.Fatalf("expected modal to open, opened=%d replies=%v", opened, replies)
	}

	h.rename.HandleRenameButton(event("thread-unknown"))
	if len(replies) != 1 || replies[0] != messageEphemeralSessionGone {
		t.Fatalf("expected dissolved reply, got %v", replies)
	}

	h.discord.canManage = false
	h.rename.HandleRenameButton(event("thread-1"))
	if len(replies) != 2 || replies[1] != messageEphemeralOwnerOnly {
		t.Fatalf("expected owner-only reply, got %v", replies)
	}
	if opened != 1 {
		t.Fatalf("modal opened for forbidden member")
	}
}

func TestHandleRenameSubmit(t *testing.T) {
	h := newTestHarness(t)
	h.startSession(t, "vc-1", testEpoch, "A")

	var replies []string
	respond := func(content string) error {
		replies = append(replies, content)
		return nil
	}

	h.rename.HandleRenameSubmit(discord.RenameSubmitEvent{GuildID: "guild-1", ThreadID: "thread-1", UserID: "A", Name: "Karaoke", RespondEphemeral: respond})
	h.rename.HandleRenameSubmit(discord.RenameSubmitEvent{GuildID: "guild-1", ThreadID: "thread-1", UserID: "A", Name: " ", RespondEphemeral: respond})
	h.discord.renameErr = errors.New("500 internal error")
	h.rename.HandleRenameSubmit(discord.RenameSubmitEvent{GuildID: "guild-1", ThreadID: "thread-1", UserID: "A", Name: "Shiritori", RespondEphemeral: respond})

	want := []string{messageEphemeralRenamed, messageEphemeralInvalidName, messageEphemeralRenameFailed}
	if strings.Join(replies, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected replies: got %v want %v", replies, want)
	}
}
