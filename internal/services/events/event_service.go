package events

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/Anmol33/jusfinn-sub000/internal/common"
	"github.com/Anmol33/jusfinn-sub000/internal/interfaces"
)

// mailboxSize bounds how far a slow subscriber can lag behind publishers
// before publishes start blocking on it.
const mailboxSize = 256

// delivery carries one event through a subscriber mailbox. respCh is nil for
// async publishes; sync publishes wait on it for the handler result.
type delivery struct {
	ctx    context.Context
	event  interfaces.Event
	respCh chan<- error
}

// subscription owns one handler and the dispatch goroutine that feeds it.
// All events for a handler flow through its mailbox in publish order, so a
// subscriber observes a publisher's sequence exactly as it was emitted.
type subscription struct {
	handler  interfaces.EventHandler
	mailbox  chan delivery
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newSubscription(handler interfaces.EventHandler) *subscription {
	return &subscription{
		handler: handler,
		mailbox: make(chan delivery, mailboxSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (sub *subscription) stop() {
	sub.stopOnce.Do(func() { close(sub.quit) })
}

// run is the per-subscription dispatch loop. One goroutine per handler keeps
// delivery ordered without letting one slow subscriber stall the others.
func (sub *subscription) run(logger arbor.ILogger, eventType interfaces.EventType) {
	defer close(sub.done)

	for {
		select {
		case d := <-sub.mailbox:
			err := sub.invoke(d.ctx, d.event)
			if err != nil {
				logger.Error().
					Err(err).
					Str("event_type", string(eventType)).
					Msg("Event handler failed")
			}
			if d.respCh != nil {
				d.respCh <- err
			}
		case <-sub.quit:
			return
		}
	}
}

// invoke shields the dispatch loop from handler panics
func (sub *subscription) invoke(ctx context.Context, event interfaces.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panic: %v", r)
		}
	}()
	return sub.handler(ctx, event)
}

// Service implements EventService with a pub/sub pattern. Each subscriber
// gets a dedicated mailbox goroutine, so publishing stays cheap while every
// subscriber sees events for a given publisher in the order they were
// published.
type Service struct {
	subscribers map[interfaces.EventType][]*subscription
	mu          sync.RWMutex
	logger      arbor.ILogger
}

// NewService creates a new event service
func NewService(logger arbor.ILogger) interfaces.EventService {
	return &Service{
		subscribers: make(map[interfaces.EventType][]*subscription),
		logger:      logger,
	}
}

// Subscribe registers a handler for an event type and starts its dispatch
// goroutine
func (s *Service) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	sub := newSubscription(handler)

	s.mu.Lock()
	s.subscribers[eventType] = append(s.subscribers[eventType], sub)
	count := len(s.subscribers[eventType])
	s.mu.Unlock()

	common.SafeGo(s.logger, "event:"+string(eventType), func() {
		sub.run(s.logger, eventType)
	})

	s.logger.Debug().
		Str("event_type", string(eventType)).
		Int("subscriber_count", count).
		Msg("Event handler subscribed")

	return nil
}

// Unsubscribe removes a handler from an event type and stops its dispatch
// goroutine. Handlers are matched by function identity.
func (s *Service) Unsubscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	s.mu.Lock()

	target := reflect.ValueOf(handler).Pointer()
	subs := s.subscribers[eventType]
	for i, sub := range subs {
		if reflect.ValueOf(sub.handler).Pointer() == target {
			s.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			s.mu.Unlock()

			sub.stop()
			s.logger.Debug().
				Str("event_type", string(eventType)).
				Msg("Event handler unsubscribed")
			return nil
		}
	}
	s.mu.Unlock()

	return fmt.Errorf("handler not found for event type: %s", eventType)
}

// Publish sends an event to all subscriber mailboxes without waiting for
// handlers to run
func (s *Service) Publish(ctx context.Context, event interfaces.Event) error {
	subs := s.snapshot(event.Type)
	if len(subs) == 0 {
		return nil
	}

	s.logger.Debug().
		Str("event_type", string(event.Type)).
		Int("subscriber_count", len(subs)).
		Msg("Publishing event")

	for _, sub := range subs {
		select {
		case sub.mailbox <- delivery{ctx: ctx, event: event}:
		case <-sub.quit:
		}
	}

	return nil
}

// PublishSync sends an event through the same ordered mailboxes and waits
// for every handler to finish
func (s *Service) PublishSync(ctx context.Context, event interfaces.Event) error {
	subs := s.snapshot(event.Type)
	if len(subs) == 0 {
		return nil
	}

	errCount := 0
	for _, sub := range subs {
		respCh := make(chan error, 1)
		select {
		case sub.mailbox <- delivery{ctx: ctx, event: event, respCh: respCh}:
			select {
			case err := <-respCh:
				if err != nil {
					errCount++
				}
			case <-sub.done:
			}
		case <-sub.quit:
		}
	}

	if errCount > 0 {
		return fmt.Errorf("event handlers failed: %d errors", errCount)
	}
	return nil
}

func (s *Service) snapshot(eventType interfaces.EventType) []*subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subs := make([]*subscription, len(s.subscribers[eventType]))
	copy(subs, s.subscribers[eventType])
	return subs
}

// Close stops all subscriber dispatch goroutines
func (s *Service) Close() error {
	s.mu.Lock()
	subscribers := s.subscribers
	s.subscribers = make(map[interfaces.EventType][]*subscription)
	s.mu.Unlock()

	for _, subs := range subscribers {
		for _, sub := range subs {
			sub.stop()
			<-sub.done
		}
	}

	s.logger.Debug().Msg("Event service closed")
	return nil
}
