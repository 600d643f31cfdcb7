// Package notifications carries registry events to connected clients.
package notifications

import (
	"context"
	"time"
)

// EventType names a registry event.
type EventType string

const (
	EventProjectRegistered EventType = "project.registered"
	EventMRVSubmitted      EventType = "mrv.submitted"
	EventMRVDecided        EventType = "mrv.decided"
	EventCreditIssued      EventType = "credit.issued"
	EventCreditPurchased   EventType = "credit.purchased"
	EventCreditRetired     EventType = "credit.retired"
	EventChainConfirmed    EventType = "chain.confirmed"
)

// Event is what subscribers receive. An empty audience reaches everyone;
// otherwise a client receives the event if its user id or role is listed.
type Event struct {
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	UserIDs   []string       `json:"-"`
	Roles     []string       `json:"-"`
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, data map[string]any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now().UTC()}
}

// ForUsers restricts the audience to the given users.
func (e Event) ForUsers(ids ...string) Event {
	e.UserIDs = append(e.UserIDs, ids...)
	return e
}

// ForRoles restricts the audience to callers holding one of roles.
func (e Event) ForRoles(roles ...string) Event {
	e.Roles = append(e.Roles, roles...)
	return e
}

// Reaches reports whether a subscriber with userID and role is in the
// audience.
func (e Event) Reaches(userID, role string) bool {
	if len(e.UserIDs) == 0 && len(e.Roles) == 0 {
		return true
	}
	for _, id := range e.UserIDs {
		if id == userID {
			return true
		}
	}
	for _, r := range e.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Publisher delivers events. Publishing never fails the caller's operation.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

// Fanout delivers each event to every publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) {
	for _, p := range f {
		p.Publish(ctx, event)
	}
}
