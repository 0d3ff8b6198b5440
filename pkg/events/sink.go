package events

// EventSink receives growth events. Publishing is best effort: a failing
// sink never aborts a growth run.
type EventSink interface {
	PublishEvent(event GrowthEvent) error
}

type NullSink struct{}

func (NullSink) PublishEvent(GrowthEvent) error { return nil }

var _ EventSink = NullSink{}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(event GrowthEvent) error

func (f SinkFunc) PublishEvent(event GrowthEvent) error { return f(event) }
