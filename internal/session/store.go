package session

import (
	"errors"
	"slices"
	"sync"
	"time"
)

var (
	ErrAlreadyExists    = errors.New("session already exists")
	ErrNotFound         = errors.New("session not found")
	ErrAlreadyArchiving = errors.New("session is already archiving")
	ErrSessionNotFound  = errors.New("thread is not linked to an active session")
)

// VoiceSession is a point-in-time copy of a tracked voice channel. Callers
// never hold the live record; every change goes through Store.
type VoiceSession struct {
	VoiceChannelID   string
	VoiceChannelName string
	ThreadID         string
	StartedAt        time.Time
	// Participants lists every member that ever joined, in first-seen order.
	Participants []string
	// Present lists members currently in the voice channel.
	Present   []string
	Archiving bool
}

type trackedSession struct {
	voiceChannelID   string
	voiceChannelName string
	threadID         string
	startedAt        time.Time
	participants     []string
	seen             map[string]struct{}
	present          map[string]struct{}
	archiving        bool
}

func (s *trackedSession) snapshot() VoiceSession {
	present := make([]string, 0, len(s.present))
	for _, id := range s.participants {
		if _, ok := s.present[id]; ok {
			present = append(present, id)
		}
	}
	return VoiceSession{
		VoiceChannelID:   s.voiceChannelID,
		VoiceChannelName: s.voiceChannelName,
		ThreadID:         s.threadID,
		StartedAt:        s.startedAt,
		Participants:     slices.Clone(s.participants),
		Present:          present,
		Archiving:        s.archiving,
	}
}

// Store is the in-memory registry of voice sessions. Each method runs under
// one short critical section without I/O, so operations on the same voice
// channel never interleave.
type Store struct {
	mu            sync.Mutex
	byVoice       map[string]*trackedSession
	voiceByThread map[string]string
}

func NewStore() *Store {
	return &Store{
		byVoice:       make(map[string]*trackedSession),
		voiceByThread: make(map[string]string),
	}
}

func (st *Store) Get(voiceChannelID string) (VoiceSession, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.byVoice[voiceChannelID]
	if !ok {
		return VoiceSession{}, false
	}
	return s.snapshot(), true
}

func (st *Store) Has(voiceChannelID string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.byVoice[voiceChannelID]
	return ok
}

func (st *Store) Create(voiceChannelID, voiceChannelName, threadID string, startedAt time.Time) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.byVoice[voiceChannelID]; ok {
		return ErrAlreadyExists
	}
	st.byVoice[voiceChannelID] = &trackedSession{
		voiceChannelID:   voiceChannelID,
		voiceChannelName: voiceChannelName,
		threadID:         threadID,
		startedAt:        startedAt,
		seen:             make(map[string]struct{}),
		present:          make(map[string]struct{}),
	}
	st.voiceByThread[threadID] = voiceChannelID
	return nil
}

// RecordJoin reports whether memberID is joining this session for the first time.
func (st *Store) RecordJoin(voiceChannelID, memberID string) (bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.byVoice[voiceChannelID]
	if !ok {
		return false, ErrNotFound
	}
	if s.archiving {
		return false, ErrAlreadyArchiving
	}
	s.present[memberID] = struct{}{}
	if _, seen := s.seen[memberID]; seen {
		return false, nil
	}
	s.seen[memberID] = struct{}{}
	s.participants = append(s.participants, memberID)
	return true, nil
}

func (st *Store) RecordLeave(voiceChannelID, memberID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.byVoice[voiceChannelID]
	if !ok {
		return ErrNotFound
	}
	if s.archiving {
		return ErrAlreadyArchiving
	}
	delete(s.present, memberID)
	return nil
}

func (st *Store) Rename(voiceChannelID, name string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.byVoice[voiceChannelID]
	if !ok {
		return ErrNotFound
	}
	if s.archiving {
		return ErrAlreadyArchiving
	}
	s.voiceChannelName = name
	return nil
}

func (st *Store) BeginArchive(voiceChannelID string) (VoiceSession, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.byVoice[voiceChannelID]
	if !ok {
		return VoiceSession{}, ErrNotFound
	}
	if s.archiving {
		return VoiceSession{}, ErrAlreadyArchiving
	}
	s.archiving = true
	return s.snapshot(), nil
}

func (st *Store) Remove(voiceChannelID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.byVoice[voiceChannelID]
	if !ok {
		return
	}
	delete(st.byVoice, voiceChannelID)
	if st.voiceByThread[s.threadID] == voiceChannelID {
		delete(st.voiceByThread, s.threadID)
	}
}

// ActiveByThread resolves a thread back to its session. Archiving sessions
// are reported as missing so late controls fail cleanly.
func (st *Store) ActiveByThread(threadID string) (VoiceSession, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	voiceChannelID, ok := st.voiceByThread[threadID]
	if !ok {
		return VoiceSession{}, ErrSessionNotFound
	}
	s, ok := st.byVoice[voiceChannelID]
	if !ok || s.archiving {
		return VoiceSession{}, ErrSessionNotFound
	}
	return s.snapshot(), nil
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.byVoice)
}
