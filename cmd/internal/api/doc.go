// Package api is the request/response surface shared by the REST routes
// and the websocket gateway. Every operation produces a Result with a
// success flag, a human-readable message, and optional data; the HTTP
// status lives alongside for the REST surface and is dropped on the wire
// for websocket replies.
package api
