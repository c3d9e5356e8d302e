// Package remote defines the contract for the networked document store the
// engine synchronizes against. The store is eventually consistent; the
// engine only relies on errors being classifiable as transient
// (network/timeout) or permanent (validation/permission).
package remote

import (
	"context"
	"encoding/json"
)

// Collection names used by the registry.
const (
	CollectionRoster     = "roster"
	CollectionAccounts   = "accounts"
	CollectionRegistered = "registered_students"
	CollectionHealth     = "health"
)

// Document is a stored record addressed by key within a collection.
type Document struct {
	Key  string          `json:"key"`
	Data json.RawMessage `json:"data"`
}

// Filter narrows a Query by exact field match.
type Filter map[string]string

// EventType classifies a change notification.
type EventType string

const (
	EventPut     EventType = "put"
	EventDelete  EventType = "delete"
	EventChanged EventType = "changed"
)

// Event is a change notification for a subscribed collection.
type Event struct {
	Collection string
	Type       EventType
	Key        string
}

// Store is the remote document store contract. Implementations must return
// pkg/errors typed errors so callers can distinguish transient
// unavailability from permanent rejection.
type Store interface {
	Get(ctx context.Context, collection, key string) (*Document, error)
	Query(ctx context.Context, collection string, filter Filter) ([]Document, error)
	Put(ctx context.Context, collection, key string, doc any) error
	Delete(ctx context.Context, collection, key string) error
	Subscribe(collection string, fn func(Event)) (func(), error)
}
