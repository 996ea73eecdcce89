package marketfeeds

import (
	"strings"
	"time"
)

// Trigger names what caused a lifecycle transition
type Trigger string

const (
	TriggerManual    Trigger = "MANUAL"
	TriggerStartup   Trigger = "STARTUP"
	TriggerShutdown  Trigger = "SHUTDOWN"
	TriggerScheduler Trigger = "SCHEDULER"
)

// ParseTrigger normalises s, defaulting to TriggerManual for unknown values
func ParseTrigger(s string) Trigger {
	switch t := Trigger(strings.ToUpper(strings.TrimSpace(s))); t {
	case TriggerManual, TriggerStartup, TriggerShutdown, TriggerScheduler:
		return t
	default:
		return TriggerManual
	}
}

// FeedStartedEvent is published after the feed transitions to RUNNING
type FeedStartedEvent struct {
	Exchanges []string
	Trigger   Trigger
	Timestamp time.Time
}

// FeedStoppedEvent is published after the feed transitions to STOPPED
type FeedStoppedEvent struct {
	Exchanges []string
	Trigger   Trigger
	Cause     string
	Timestamp time.Time
}
