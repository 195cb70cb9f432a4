// Package classroom talks to Google on behalf of a student: it trades
// authorization codes and refresh tokens for access tokens, and turns the
// Classroom API's courses, course work and submissions into assignments.
package classroom
