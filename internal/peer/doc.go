// Package peer implements the remote side of the UDP test harness: an echo
// reflector, packet streamers for the receive tests, listeners that check
// what the harness transmitted, and a small DNS responder.
//
// Every responder satisfies transport.Endpoint, so the same code serves a
// real socket through Server and an in-memory Loopback network.
package peer
