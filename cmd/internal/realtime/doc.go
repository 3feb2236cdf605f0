// Package realtime is the websocket side of Twidder: the gateway that
// speaks the client's event protocol, the registry of live connections and
// their bound identities, and the hub that pushes posted messages to a
// recipient's connections.
//
// A connection starts anonymous. The first successful call that proves an
// identity (a sign-in, or any token-bearing call) binds the connection to
// that identity in the registry; only bound connections receive pushes.
// Closing a connection unbinds it exactly once before its goroutines are
// torn down, so a broadcaster never holds a stale client through teardown.
package realtime
