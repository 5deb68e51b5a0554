package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/vcthread/internal/config"
	"github.com/foxseedlab/vcthread/internal/discord"
	"github.com/foxseedlab/vcthread/internal/repository"
	"github.com/foxseedlab/vcthread/internal/telemetry"
	"github.com/foxseedlab/vcthread/internal/webhook"
	"github.com/prometheus/client_golang/prometheus"
)

var testEpoch = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func newTestConfig() *config.Config {
	return &config.Config{
		Env:                          "test",
		DiscordToken:                 "token",
		DiscordGuildID:               "guild-1",
		VCCategoryID:                 "category-1",
		VCIgnoredChannelIDs:          []string{"lobby"},
		ThreadChannelID:              "text-1",
		ThreadAutoArchiveMinutes:     1440,
		RenameRequiresManageChannels: true,
		PlatformMaxAttempts:          3,
		PlatformRetryInitialInterval: 500 * time.Millisecond,
		SummaryTimezone:              "Asia/Tokyo",
	}
}

func newTestMetrics() *telemetry.Metrics {
	reg := prometheus.NewRegistry()
	return telemetry.NewMetrics(reg, reg)
}

type sentMessage struct {
	channelID string
	content   string
}

type renameCall struct {
	channelID string
	name      string
}

type mockDiscordClient struct {
	mu sync.Mutex

	createCalls    []discord.ThreadInput
	messages       []sentMessage
	renameControls []sentMessage
	archived       []string
	renames        []renameCall
	permission     []string

	// createGate, when set, holds CreateThread until it is closed.
	createGate   chan struct{}
	createErr    error
	archiveErr   error
	messageErr   error
	renameErr    error
	canManage    bool
	canManageErr error
}

func newMockDiscordClient() *mockDiscordClient {
	return &mockDiscordClient{canManage: true}
}

func (m *mockDiscordClient) Connect(_ context.Context) error { return nil }
func (m *mockDiscordClient) Close() error                    { return nil }
func (m *mockDiscordClient) Run() error                      { return nil }
func (m *mockDiscordClient) GetBotUserID() (string, error)   { return "bot-self", nil }
func (m *mockDiscordClient) RegisterVoiceStateUpdateHandler(_ func(discord.VoiceStateEvent)) {
}
func (m *mockDiscordClient) RegisterChannelDeleteHandler(_ func(discord.ChannelEvent)) {}
func (m *mockDiscordClient) RegisterChannelUpdateHandler(_ func(discord.ChannelEvent)) {}
func (m *mockDiscordClient) RegisterRenameHandlers(_ func(discord.RenameButtonEvent), _ func(discord.RenameSubmitEvent)) {
}

func (m *mockDiscordClient) CreateThread(_ context.Context, input discord.ThreadInput) (string, error) {
	m.mu.Lock()
	gate := m.createGate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls = append(m.createCalls, input)
	if m.createErr != nil {
		return "", m.createErr
	}
	return fmt.Sprintf("thread-%d", len(m.createCalls)), nil
}

func (m *mockDiscordClient) SendMessage(_ context.Context, channelID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.messageErr != nil {
		return m.messageErr
	}
	m.messages = append(m.messages, sentMessage{channelID: channelID, content: content})
	return nil
}

func (m *mockDiscordClient) SendRenameControl(_ context.Context, channelID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renameControls = append(m.renameControls, sentMessage{channelID: channelID, content: content})
	return nil
}

func (m *mockDiscordClient) ArchiveThread(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archived = append(m.archived, threadID)
	return m.archiveErr
}

func (m *mockDiscordClient) RenameChannel(_ context.Context, channelID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renames = append(m.renames, renameCall{channelID: channelID, name: name})
	return m.renameErr
}

func (m *mockDiscordClient) CanManageChannel(_ context.Context, channelID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permission = append(m.permission, channelID+"/"+userID)
	return m.canManage, m.canManageErr
}

func (m *mockDiscordClient) createCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.createCalls)
}

func (m *mockDiscordClient) archivedThreads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.archived...)
}

func (m *mockDiscordClient) renameCalls() []renameCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]renameCall(nil), m.renames...)
}

func (m *mockDiscordClient) messagesTo(channelID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.messages {
		if msg.channelID == channelID {
			out = append(out, msg.content)
		}
	}
	return out
}

type mockHistoryRepository struct {
	mu    sync.Mutex
	saved []repository.SaveArchivedSessionInput
	err   error
}

func (m *mockHistoryRepository) SaveArchivedSession(_ context.Context, input repository.SaveArchivedSessionInput) (*repository.ArchivedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.saved = append(m.saved, input)
	return &repository.ArchivedSession{
		ID:               fmt.Sprintf("history-%d", len(m.saved)),
		GuildID:          input.GuildID,
		VoiceChannelID:   input.VoiceChannelID,
		VoiceChannelName: input.VoiceChannelName,
		ThreadID:         input.ThreadID,
		StartedAt:        input.StartedAt,
		EndedAt:          input.EndedAt,
		ParticipantIDs:   input.ParticipantIDs,
		Status:           input.Status,
	}, nil
}

func (m *mockHistoryRepository) savedInputs() []repository.SaveArchivedSessionInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repository.SaveArchivedSessionInput(nil), m.saved...)
}

type mockWebhookSender struct {
	mu       sync.Mutex
	payloads []webhook.SessionSummaryPayload
}

func (m *mockWebhookSender) SendSessionSummary(_ context.Context, payload webhook.SessionSummaryPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, payload)
	return nil
}

func (m *mockWebhookSender) sent() []webhook.SessionSummaryPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]webhook.SessionSummaryPayload(nil), m.payloads...)
}

type testHarness struct {
	cfg         *config.Config
	store       *Store
	dispatcher  *Dispatcher
	discord     *mockDiscordClient
	history     *mockHistoryRepository
	webhook     *mockWebhookSender
	coordinator *Coordinator
	rename      *RenameHandler
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		cfg:        newTestConfig(),
		store:      NewStore(),
		dispatcher: NewDispatcher(),
		discord:    newMockDiscordClient(),
		history:    &mockHistoryRepository{},
		webhook:    &mockWebhookSender{},
	}
	metrics := newTestMetrics()
	h.coordinator = NewCoordinator(h.cfg, h.store, h.dispatcher, h.discord, h.history, h.webhook, metrics)
	h.coordinator.retry = newTestRetrier(3)
	h.coordinator.retry.metrics = metrics
	h.coordinator.normalizer.now = func() time.Time { return testEpoch }
	h.coordinator.now = func() time.Time { return testEpoch }
	h.coordinator.newEventID = func() string { return "event-1" }
	h.coordinator.SetBotUserID("bot-self")

	h.rename = NewRenameHandler(h.cfg, h.store, h.dispatcher, h.discord, metrics)
	h.rename.retry = newTestRetrier(3)
	h.rename.retry.metrics = metrics

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.coordinator.Shutdown(ctx)
	})
	return h
}

func (h *testHarness) metrics() *telemetry.Metrics {
	return h.coordinator.metrics
}

// startSession drives the coordinator directly, bypassing the dispatcher.
func (h *testHarness) startSession(t *testing.T, voiceChannelID string, at time.Time, members ...string) VoiceSession {
	t.Helper()
	ctx := context.Background()
	creator := ""
	if len(members) > 0 {
		creator = members[0]
	}
	h.coordinator.Process(ctx, Event{Kind: EventVoiceChannelAppeared, VoiceChannelID: voiceChannelID, VoiceChannelName: "VC " + voiceChannelID, MemberID: creator, At: at})
	for _, member := range members {
		h.coordinator.Process(ctx, Event{Kind: EventMemberJoined, VoiceChannelID: voiceChannelID, MemberID: member, At: at})
	}
	s, ok := h.store.Get(voiceChannelID)
	if !ok {
		t.Fatalf("expected session for %s", voiceChannelID)
	}
	return s
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(message)
}
