// Package policy decides which assignments deserve a reminder and builds
// the push payload for them.
//
// Rules, first match wins:
//   - late                                  -> overdue (days late, at least 1)
//   - pending, due within 0..1 days          -> dueTomorrow
//   - pending, due within more than 1..7 days -> dueSoon
//
// Days are counted from now to local midnight of the due date, rounded up.
// A reminder is suppressed while its dedupe key is queued or was delivered
// less than the cooldown ago.
package policy
