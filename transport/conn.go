package transport

import "errors"

// ErrConnClosed is returned when a response is sent on a connection the
// session layer has already torn down.
var ErrConnClosed = errors.New("connection closed")

// Conn is a non-owning handle to a live inbound contact-request session.
//
// The request subsystem never extends a session's lifetime: Open reports
// whether the session layer still considers the connection alive, and a
// handle whose session has died simply reads as closed. Ownership, timeouts,
// and teardown all stay with the session layer.
type Conn interface {
	// ID identifies the connection for logging.
	ID() string

	// Open reports whether the session is still alive.
	Open() bool

	// SendResponse delivers the accept (true) or reject (false) outcome to
	// the remote peer. How the peer is told is the session layer's concern.
	SendResponse(accepted bool) error

	// Close asks the session layer to tear the session down.
	Close() error
}

// ContactAdder receives the accept-path outcome of a contact request and
// forms the contact relationship on the negotiation layer.
type ContactAdder interface {
	AddContact(hostname, nickname string, secret []byte) error
}
