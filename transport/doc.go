// Package transport defines the interfaces through which the contact-request
// core talks to the session and negotiation layer.
//
// The core never dials, listens, or performs key operations itself. It
// receives opaque connection handles (Conn) alongside incoming requests and
// reports accept/reject outcomes back through them; forming the actual
// contact relationship on acceptance is delegated to a ContactAdder.
//
// LoopbackConn is an in-memory Conn used by tests and the demo daemon.
package transport
