package events

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

type EventType string

const (
	EventTypeGrowStart     EventType = "grow-start"
	EventTypeReplyAppended EventType = "reply-appended"
	EventTypeGrowDone      EventType = "grow-done"
)

// GrowthEvent reports the progress of a tree growth run.
type GrowthEvent struct {
	Type       EventType `json:"type"`
	Seed       string    `json:"seed,omitempty"`
	TargetSize int       `json:"targetSize"`
	Size       int       `json:"size"`
	ParentID   string    `json:"parentID,omitempty"`
	ReplyID    string    `json:"replyID,omitempty"`
	Role       string    `json:"role,omitempty"`
	Text       string    `json:"text,omitempty"`
	Time       time.Time `json:"time"`
}

func NewGrowthEvent(t EventType, size, targetSize int) GrowthEvent {
	return GrowthEvent{
		Type:       t,
		Size:       size,
		TargetSize: targetSize,
		Time:       time.Now(),
	}
}

func ParseGrowthEvent(payload []byte) (GrowthEvent, error) {
	var e GrowthEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return GrowthEvent{}, errors.Wrap(err, "decoding growth event")
	}
	switch e.Type {
	case EventTypeGrowStart, EventTypeReplyAppended, EventTypeGrowDone:
		return e, nil
	default:
		return GrowthEvent{}, errors.Errorf("unknown growth event type %q", e.Type)
	}
}
