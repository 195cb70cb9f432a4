// Package registry owns the set of push registrations.
//
// Every mutation runs under one mutex as read-modify-persist: the record is
// changed in memory, then the whole registry is written through the
// configured storage.Store. A failed write is logged and the in-memory state
// kept; the next mutation writes everything again.
package registry
