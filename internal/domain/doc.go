// Package domain holds the data shared by the registry, the Classroom
// fetcher, the policy engine and the push dispatcher.
//
// Timestamps that are persisted use epoch milliseconds to stay compatible
// with the browser client, which produces them with Date.now().
package domain
