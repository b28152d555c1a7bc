package nats

import (
	"context"
	"sync"
)

// RecordingPublisher keeps published events in memory instead of sending
// them. It applies the same subject rules as CorePublisher, so an event it
// accepts would have been routable.
type RecordingPublisher struct {
	// Prefix is the subject prefix used to build recorded subjects.
	Prefix string
	// Err, when set, is returned by every PublishReport call.
	Err error

	mu       sync.Mutex
	subjects []string
	events   []*SweepEvent
	closed   bool
}

var _ Publisher = (*RecordingPublisher)(nil)

func (r *RecordingPublisher) PublishReport(_ context.Context, event *SweepEvent) error {
	if err := ValidateSubjectToken(event.Address); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.subjects = append(r.subjects, Subject(r.Prefix, event.Address))
	r.events = append(r.events, event)
	return nil
}

func (r *RecordingPublisher) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Events returns the accepted events in publish order.
func (r *RecordingPublisher) Events() []*SweepEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*SweepEvent(nil), r.events...)
}

// Subjects returns the subject each accepted event was addressed to.
func (r *RecordingPublisher) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.subjects...)
}

func (r *RecordingPublisher) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
