package sse

import (
	"errors"
	"sync"

	"github.com/bwmarrin/snowflake"
)

const (
	EventPaymentConfirmed = "payment-confirmed"
	EventOrderCompleted   = "order-completed"
)

const defaultSubscriberBuffer = 16

// Event is pushed to every live connection of the owning user.
type Event struct {
	Type        string `json:"-"`
	OrderID     string `json:"orderId"`
	PaymentID   string `json:"paymentId,omitempty"`
	ReferenceID string `json:"referenceId,omitempty"`
}

// Hub holds per-user live connections. Slow subscribers drop events rather
// than block publishers.
type Hub struct {
	mu               sync.RWMutex
	streams          map[snowflake.ID]*stream
	subscriberBuffer int
}

type stream struct {
	mu     sync.Mutex
	subs   map[uint64]chan Event
	nextID uint64
}

type Subscription struct {
	hub    *Hub
	userID snowflake.ID
	id     uint64
	ch     chan Event
	once   sync.Once
}

func NewHub() *Hub {
	return &Hub{
		streams:          make(map[snowflake.ID]*stream),
		subscriberBuffer: defaultSubscriberBuffer,
	}
}

func (h *Hub) Publish(userID snowflake.ID, event Event) {
	if h == nil || userID == 0 {
		return
	}
	h.mu.RLock()
	stream := h.streams[userID]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	subs := make([]chan Event, 0, len(stream.subs))
	for _, ch := range stream.subs {
		subs = append(subs, ch)
	}
	stream.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *Hub) Subscribe(userID snowflake.ID) (*Subscription, error) {
	if h == nil {
		return nil, errors.New("hub_unavailable")
	}
	if userID == 0 {
		return nil, errors.New("invalid_user")
	}

	stream := h.ensureStream(userID)
	stream.mu.Lock()
	if stream.subs == nil {
		stream.subs = make(map[uint64]chan Event)
	}
	id := stream.nextID
	stream.nextID++
	ch := make(chan Event, h.subscriberBuffer)
	stream.subs[id] = ch
	stream.mu.Unlock()

	return &Subscription{
		hub:    h,
		userID: userID,
		id:     id,
		ch:     ch,
	}, nil
}

func (h *Hub) ensureStream(userID snowflake.ID) *stream {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.streams[userID]
	if !ok {
		s = &stream{}
		h.streams[userID] = s
	}
	return s
}

func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.RLock()
		stream := s.hub.streams[s.userID]
		s.hub.mu.RUnlock()
		if stream == nil {
			return
		}
		stream.mu.Lock()
		delete(stream.subs, s.id)
		stream.mu.Unlock()
	})
}
