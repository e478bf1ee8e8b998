package server

import (
	"context"
	"sync"
	"time"
)

const (
	// EventBlockChanged signals block registry changes (add, capacity, delete).
	EventBlockChanged = "block-change"
	// EventLotChanged signals lot creation, status edits, and owner changes.
	EventLotChanged = "lot-change"
	eventHeartbeat  = "heartbeat"
	eventSource     = "estates-backend"
)

// InventoryEvent is broadcast to the monitoring grid whenever the lot
// inventory changes, so open consoles refresh without polling.
type InventoryEvent struct {
	EventType string    `json:"event_type"`
	BlockID   string    `json:"block_id,omitempty"`
	LotIDs    []string  `json:"lot_ids,omitempty"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// EventDispatcher fans inventory events out to SSE subscribers. Slow
// subscribers drop events rather than block publishers.
type EventDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*eventSubscriber
	nextID      int64
	bufferSize  int
}

type eventSubscriber struct {
	id     int64
	stream chan InventoryEvent
}

// NewEventDispatcher constructs a dispatcher with a per-subscriber buffer.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		subscribers: make(map[int64]*eventSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a listener that receives events until ctx is done or
// the returned cleanup runs.
func (d *EventDispatcher) Subscribe(ctx context.Context) (<-chan InventoryEvent, func()) {
	subscriber := &eventSubscriber{
		id:     d.nextSequence(),
		stream: make(chan InventoryEvent, d.bufferSize),
	}
	d.registerSubscriber(subscriber)
	cleanup := func() {
		d.unregisterSubscriber(subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers an event to every current subscriber without blocking.
func (d *EventDispatcher) Publish(event InventoryEvent) {
	if event.EventType == "" {
		return
	}
	if event.Source == "" {
		event.Source = eventSource
	}

	d.mu.RLock()
	copies := make([]*eventSubscriber, 0, len(d.subscribers))
	for _, subscriber := range d.subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()

	for _, subscriber := range copies {
		select {
		case subscriber.stream <- event:
		default:
		}
	}
}

func (d *EventDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *EventDispatcher) registerSubscriber(subscriber *eventSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers[subscriber.id] = subscriber
}

func (d *EventDispatcher) unregisterSubscriber(subscriberID int64) {
	d.mu.Lock()
	delete(d.subscribers, subscriberID)
	d.mu.Unlock()
}
