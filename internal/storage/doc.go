// Package storage persists the subscription registry.
//
// The registry is saved as a whole on every mutation, so drivers only need
// to load and atomically replace a set of opaque JSON records keyed by
// client id. Drivers also keep an append-only audit trail of registration
// lifecycle events (created, owner switched, removed).
package storage
