package session

import "time"

type EventKind int

const (
	EventVoiceChannelAppeared EventKind = iota + 1
	EventVoiceChannelRemoved
	EventVoiceChannelRenamed
	EventMemberJoined
	EventMemberLeft
)

func (k EventKind) String() string {
	switch k {
	case EventVoiceChannelAppeared:
		return "voice_channel_appeared"
	case EventVoiceChannelRemoved:
		return "voice_channel_removed"
	case EventVoiceChannelRenamed:
		return "voice_channel_renamed"
	case EventMemberJoined:
		return "member_joined"
	case EventMemberLeft:
		return "member_left"
	default:
		return "unknown"
	}
}

// Event is the normalized lifecycle vocabulary consumed by Coordinator.
type Event struct {
	Kind             EventKind
	VoiceChannelID   string
	VoiceChannelName string
	MemberID         string
	At               time.Time
}
