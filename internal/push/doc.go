// Package push owns the server's VAPID identity and delivers encrypted
// Web Push messages to browser push services.
package push
