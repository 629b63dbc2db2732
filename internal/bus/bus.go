package bus

import (
	"sync"
	"sync/atomic"
)

type Topic string

const (
	TopicStarted   Topic = "started"
	TopicChunk     Topic = "chunk"
	TopicCompleted Topic = "completed"
	TopicError     Topic = "error"
)

// Message is one analysis lifecycle event. Only the fields relevant to the
// topic are set: Text for started, Chunk for chunk, Text and Result for
// completed, Error for error.
type Message struct {
	Topic  Topic  `json:"topic"`
	Text   string `json:"text,omitempty"`
	Chunk  string `json:"chunk,omitempty"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func Started(text string) Message { return Message{Topic: TopicStarted, Text: text} }
func Chunk(chunk string) Message  { return Message{Topic: TopicChunk, Chunk: chunk} }
func Failed(msg string) Message   { return Message{Topic: TopicError, Error: msg} }

func Completed(text, result string) Message {
	return Message{Topic: TopicCompleted, Text: text, Result: result}
}

// Bus fans messages out to every open subscription. Delivery is best
// effort: a subscriber whose buffer is full misses the message.
type Bus struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	dropped atomic.Int64
}

func New() *Bus {
	return &Bus{subs: map[*Subscription]struct{}{}}
}

type Subscription struct {
	ch   chan Message
	bus  *Bus
	once sync.Once
}

// C returns the delivery channel. It is closed by Close.
func (s *Subscription) C() <-chan Message { return s.ch }

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		close(s.ch)
		s.bus.mu.Unlock()
	})
}

func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	s := &Subscription{ch: make(chan Message, buffer), bus: b}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Publish never blocks.
func (b *Bus) Publish(msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		select {
		case s.ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many deliveries were skipped because a subscriber
// was full.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }
