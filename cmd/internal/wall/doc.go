// Package wall implements the message service behind a user's wall:
// posting a message to a recipient, listing a wall's messages, and the
// profile lookups that back them.
//
// Posting is durable-first: the message row is persisted before any live
// delivery is attempted, and delivery is fire-and-forget. A failed or
// dropped push never fails the post and is reported to logs and metrics
// only. Live delivery goes through the Broadcaster boundary so this
// package stays free of websocket concerns.
package wall
