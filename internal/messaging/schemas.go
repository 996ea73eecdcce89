package messaging

import (
	"time"

	"github.com/Aidin1998/pincex_mockfeed/internal/marketfeeds"
	"github.com/google/uuid"
)

// MessageType defines the type of message being sent
type MessageType string

const (
	MsgFeedStarted MessageType = "mockfeed.started"
	MsgFeedStopped MessageType = "mockfeed.stopped"
)

// FeedLifecycleMessage is published on every feed start and stop
type FeedLifecycleMessage struct {
	EventID   string      `json:"event_id"`
	Type      MessageType `json:"type"`
	Exchanges []string    `json:"exchanges"`
	Trigger   string      `json:"trigger"`
	Cause     string      `json:"cause,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"`
}

// Key partitions lifecycle messages by event type
func (m FeedLifecycleMessage) Key() string { return string(m.Type) }

func startedMessage(source string, e marketfeeds.FeedStartedEvent) FeedLifecycleMessage {
	return FeedLifecycleMessage{
		EventID:   uuid.New().String(),
		Type:      MsgFeedStarted,
		Exchanges: exchangesOrEmpty(e.Exchanges),
		Trigger:   string(e.Trigger),
		Timestamp: e.Timestamp,
		Source:    source,
	}
}

func stoppedMessage(source string, e marketfeeds.FeedStoppedEvent) FeedLifecycleMessage {
	return FeedLifecycleMessage{
		EventID:   uuid.New().String(),
		Type:      MsgFeedStopped,
		Exchanges: exchangesOrEmpty(e.Exchanges),
		Trigger:   string(e.Trigger),
		Cause:     e.Cause,
		Timestamp: e.Timestamp,
		Source:    source,
	}
}

func exchangesOrEmpty(exchanges []string) []string {
	if exchanges == nil {
		return []string{}
	}
	return exchanges
}
