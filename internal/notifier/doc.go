// Package notifier runs the two periodic passes over the registry.
//
// # Poll
//
// For each registration, Poll refreshes the Google access token and fetches
// coursework when a refresh token is stored, replaces the assignment snapshot
// and enqueues newly-due reminders chosen by the policy engine. Registrations
// without a refresh token are evaluated against the snapshot the client last
// posted.
//
// # Drain
//
// Drain sends at most one queued reminder per registration per drain
// interval. A push endpoint reported gone removes the registration. Any other
// send failure drops the head so one bad message cannot wedge the queue.
//
// Both passes process registrations with bounded concurrency and a timeout
// per registration, and return a Report instead of failing as a whole.
package notifier
