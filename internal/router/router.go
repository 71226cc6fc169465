// Package router delivers point-to-point and broadcast messages between
// agent identifiers. It is a generic transport with no knowledge of
// queue, consensus, or resource state.
package router

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is an immutable envelope delivered between agents.
// Messages are never persisted.
type Message struct {
	// ID is the unique identifier for this message.
	ID string
	// From is the sender's agent identifier.
	From string
	// To is the recipient's agent identifier. Empty means broadcast.
	To string
	// Type tags the message for the receiver.
	Type string
	// Payload is the opaque message body.
	Payload any
	// Timestamp is when the message was constructed.
	Timestamp time.Time
}

// Handler receives delivered messages.
type Handler func(Message)

// DeliveryError reports a subscriber callback failure. Failures are
// isolated per subscriber and never abort delivery to the others.
type DeliveryError struct {
	// Message is the message that was being delivered.
	Message Message
	// SubscriberID is the agent id the failing handler was registered under,
	// or "*" for a subscribe-all handler.
	SubscriberID string
	// Err is the recovered cause.
	Err error
}

// registration pairs a handler with its owning agent id.
type registration struct {
	id      string
	handler Handler
}

// Router routes messages between agent identifiers. All delivery is
// synchronous: every matching handler has run before Send or Broadcast
// returns.
type Router struct {
	mu sync.RWMutex

	// subs maps agent id -> registration key -> handler.
	subs map[string]map[int]Handler
	// allSubs receive every message regardless of recipient.
	allSubs map[int]Handler
	// errHandlers receive delivery errors.
	errHandlers map[int]func(DeliveryError)

	nextKey int
	count   int64
}

// New creates an empty Router.
func New() *Router {
	return &Router{
		subs:        make(map[string]map[int]Handler),
		allSubs:     make(map[int]Handler),
		errHandlers: make(map[int]func(DeliveryError)),
	}
}

// Subscribe registers a handler for messages addressed to id and
// returns an unsubscribe function.
func (r *Router) Subscribe(id string, handler Handler) func() {
	r.mu.Lock()
	key := r.nextKey
	r.nextKey++
	if r.subs[id] == nil {
		r.subs[id] = make(map[int]Handler)
	}
	r.subs[id][key] = handler
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		if handlers, ok := r.subs[id]; ok {
			delete(handlers, key)
			if len(handlers) == 0 {
				delete(r.subs, id)
			}
		}
		r.mu.Unlock()
	}
}

// SubscribeAll registers a handler for every message and returns an
// unsubscribe function.
func (r *Router) SubscribeAll(handler Handler) func() {
	r.mu.Lock()
	key := r.nextKey
	r.nextKey++
	r.allSubs[key] = handler
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.allSubs, key)
		r.mu.Unlock()
	}
}

// OnDeliveryError registers a handler for subscriber failures and
// returns an unregister function.
func (r *Router) OnDeliveryError(fn func(DeliveryError)) func() {
	r.mu.Lock()
	key := r.nextKey
	r.nextKey++
	r.errHandlers[key] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.errHandlers, key)
		r.mu.Unlock()
	}
}

// Send delivers a message to every handler subscribed to the recipient,
// plus all subscribe-all handlers. Returns the constructed message.
func (r *Router) Send(from, to, msgType string, payload any) Message {
	msg := Message{
		ID:        uuid.New().String(),
		From:      from,
		To:        to,
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	r.mu.Lock()
	r.count++
	targets := make([]registration, 0, len(r.subs[to])+len(r.allSubs))
	for _, h := range r.subs[to] {
		targets = append(targets, registration{id: to, handler: h})
	}
	for _, h := range r.allSubs {
		targets = append(targets, registration{id: "*", handler: h})
	}
	r.mu.Unlock()

	r.deliver(msg, targets)
	return msg
}

// Broadcast delivers a message to every registered handler regardless
// of the id it is subscribed under. Returns the constructed message.
func (r *Router) Broadcast(from, msgType string, payload any) Message {
	msg := Message{
		ID:        uuid.New().String(),
		From:      from,
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	r.mu.Lock()
	r.count++
	var targets []registration
	for id, handlers := range r.subs {
		for _, h := range handlers {
			targets = append(targets, registration{id: id, handler: h})
		}
	}
	for _, h := range r.allSubs {
		targets = append(targets, registration{id: "*", handler: h})
	}
	r.mu.Unlock()

	r.deliver(msg, targets)
	return msg
}

// deliver invokes each handler, recovering panics individually so one
// bad subscriber cannot block delivery to the rest.
func (r *Router) deliver(msg Message, targets []registration) {
	for _, target := range targets {
		r.safeInvoke(msg, target)
	}
}

func (r *Router) safeInvoke(msg Message, target registration) {
	defer func() {
		if cause := recover(); cause != nil {
			r.reportError(DeliveryError{
				Message:      msg,
				SubscriberID: target.id,
				Err:          fmt.Errorf("subscriber panic: %v", cause),
			})
		}
	}()
	target.handler(msg)
}

func (r *Router) reportError(derr DeliveryError) {
	r.mu.RLock()
	fns := make([]func(DeliveryError), 0, len(r.errHandlers))
	for _, fn := range r.errHandlers {
		fns = append(fns, fn)
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		fn(derr)
	}
}

// Unsubscribe removes every registration for the given agent id.
func (r *Router) Unsubscribe(id string) {
	r.mu.Lock()
	delete(r.subs, id)
	r.mu.Unlock()
}

// Clear removes all subscriptions, including subscribe-all handlers.
func (r *Router) Clear() {
	r.mu.Lock()
	r.subs = make(map[string]map[int]Handler)
	r.allSubs = make(map[int]Handler)
	r.mu.Unlock()
}

// MessageCount returns the number of messages sent or broadcast.
func (r *Router) MessageCount() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}
