package events

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeCampaignDispatched   EventType = "campaign_dispatched"
	EventTypeBirthdayRewarded     EventType = "birthday_rewarded"
	EventTypeBirthdayRunCompleted EventType = "birthday_run_completed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// CampaignDispatchedEvent is emitted after a broadcast finished and its log entry was written
type CampaignDispatchedEvent struct {
	CampaignLogID int64  `json:"campaignLogId"`
	ProgramID     *int64 `json:"programId,omitempty"`
	CampaignName  string `json:"campaignName"`
	Segment       string `json:"segment"`
	Recipients    int    `json:"recipients"`
	Succeeded     int    `json:"succeeded"`
	Failed        int    `json:"failed"`
}

func (e CampaignDispatchedEvent) Type() EventType {
	return EventTypeCampaignDispatched
}

// BirthdayRewardedEvent represents points granted to one member for their birthday
type BirthdayRewardedEvent struct {
	RunID     string `json:"runId"`
	ProgramID int64  `json:"programId"`
	MemberID  int64  `json:"memberId"`
	Year      int    `json:"year"`
	Points    int64  `json:"points"`
	Notified  bool   `json:"notified"`
}

func (e BirthdayRewardedEvent) Type() EventType {
	return EventTypeBirthdayRewarded
}

// BirthdayRunCompletedEvent summarizes one non-dry birthday job run
type BirthdayRunCompletedEvent struct {
	RunID           string    `json:"runId"`
	Date            time.Time `json:"date"`
	ProgramsScanned int       `json:"programsScanned"`
	Eligible        int       `json:"eligible"`
	Rewarded        int       `json:"rewarded"`
	Skipped         int       `json:"skipped"`
	Failed          int       `json:"failed"`
	CampaignLogID   *int64    `json:"campaignLogId,omitempty"`
}

func (e BirthdayRunCompletedEvent) Type() EventType {
	return EventTypeBirthdayRunCompleted
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	wg       sync.WaitGroup
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Publish emits the event detached from any request context
func (b *Bus) Publish(event Event) {
	b.Emit(context.Background(), event)
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		b.wg.Add(1)
		go func(h Handler, handlerIndex int) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// Wait blocks until every handler started so far has returned
func (b *Bus) Wait() {
	b.wg.Wait()
}
