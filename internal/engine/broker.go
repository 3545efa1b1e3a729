package engine

import (
	"sync"

	"github.com/seantiz/hamevo/internal/model"
)

// subscriberBufferSize is the live headroom of each subscriber channel on top
// of its replayed backlog. Live events are dropped if a subscriber falls this
// far behind; the persisted history still has them.
const subscriberBufferSize = 64

// EventBroker fans out run progress events to live subscribers. It is safe
// for concurrent use.
//
// Each in-flight run keeps the events published so far, so a subscriber can
// resume after the last sequence number it saw. Finished runs drop that
// backlog and keep an empty closed topic, so a subscriber arriving after the
// run ended gets a closed channel instead of waiting forever.
type EventBroker struct {
	mu     sync.Mutex
	topics map[string]*eventTopic
}

type eventTopic struct {
	subs    map[int]chan model.Event
	backlog []model.Event
	nextID  int
	closed  bool
}

// NewEventBroker creates an empty broker.
func NewEventBroker() *EventBroker {
	return &EventBroker{
		topics: make(map[string]*eventTopic),
	}
}

func (b *EventBroker) topic(runID string) *eventTopic {
	t, ok := b.topics[runID]
	if !ok {
		t = &eventTopic{subs: make(map[int]chan model.Event)}
		b.topics[runID] = t
	}
	return t
}

// Subscribe returns a channel carrying the run's already published events
// with Seq greater than after, then its live events, and an unsubscribe
// func. Pass -1 to replay the whole backlog. If the run already finished
// the channel is closed.
func (b *EventBroker) Subscribe(runID string, after int) (<-chan model.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.topic(runID)
	if t.closed {
		ch := make(chan model.Event)
		close(ch)
		return ch, func() {}
	}

	var replay []model.Event
	for _, ev := range t.backlog {
		if ev.Seq > after {
			replay = append(replay, ev)
		}
	}
	ch := make(chan model.Event, len(replay)+subscriberBufferSize)
	for _, ev := range replay {
		ch <- ev
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish records ev in its run's backlog and delivers it to every
// subscriber without blocking.
func (b *EventBroker) Publish(ev model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.topic(ev.RunID)
	if t.closed {
		return
	}
	t.backlog = append(t.backlog, ev)

	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close ends the run's stream. Current subscribers see their channel closed
// and later subscribers get a closed channel.
func (b *EventBroker) Close(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.topic(runID)
	t.closed = true
	t.backlog = nil
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
