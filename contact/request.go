package contact

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/onionmsg/transport"
)

// IncomingRequest is one pending contact request from a remote peer.
//
// The record is owned by its RequestManager and is only valid while listed
// there: Accept and Reject remove it from the registry and from the store,
// and no method may be called on it afterwards. Every mutator writes
// through to the settings store before returning.
type IncomingRequest struct {
	manager  *RequestManager
	hostname string

	remoteSecret []byte
	message      string
	nickname     string

	requestDate     time.Time
	lastRequestDate time.Time

	// conn is a non-owning handle to the live inbound session, if any.
	// The record never extends the session's lifetime.
	conn transport.Conn
}

// newIncomingRequest creates a record first seen now. Callers persist and
// register it.
func newIncomingRequest(manager *RequestManager, hostname string, conn transport.Conn) *IncomingRequest {
	now := manager.clk.Now()
	return &IncomingRequest{
		manager:         manager,
		hostname:        hostname,
		conn:            conn,
		requestDate:     now,
		lastRequestDate: now,
	}
}

// Hostname returns the peer's onion service ID, the registry key.
func (r *IncomingRequest) Hostname() string {
	return r.hostname
}

// RemoteSecret returns the opaque secret the transport layer uses to
// validate the session.
func (r *IncomingRequest) RemoteSecret() []byte {
	return r.remoteSecret
}

// Message returns the free-text message sent by the requester.
func (r *IncomingRequest) Message() string {
	return r.message
}

// Nickname returns the requester's display name.
func (r *IncomingRequest) Nickname() string {
	return r.nickname
}

// RequestDate returns when the peer first made contact.
func (r *IncomingRequest) RequestDate() time.Time {
	return r.requestDate
}

// LastRequestDate returns the most recent contact time.
func (r *IncomingRequest) LastRequestDate() time.Time {
	return r.lastRequestDate
}

// HasActiveConnection reports whether the record references a session the
// transport layer still considers open. The handle is revalidated on every
// call, so a session that died without an explicit clear reads as inactive.
func (r *IncomingRequest) HasActiveConnection() bool {
	return r.conn != nil && r.conn.Open()
}

// SetConnection associates or clears the live inbound session. The
// transport layer clears the handle when it reports the session closed.
// The connection is runtime state and is never persisted.
func (r *IncomingRequest) SetConnection(conn transport.Conn) {
	r.conn = conn
	r.manager.notifyUpdated(r, "connection")
}

// SetRemoteSecret overwrites the session secret and persists the record.
func (r *IncomingRequest) SetRemoteSecret(secret []byte) error {
	r.remoteSecret = append([]byte(nil), secret...)
	err := r.Save()
	r.manager.notifyUpdated(r, "remoteSecret")
	return err
}

// SetMessage overwrites the requester's message and persists the record.
func (r *IncomingRequest) SetMessage(message string) error {
	r.message = message
	err := r.Save()
	r.manager.notifyUpdated(r, "message")
	return err
}

// SetNickname overwrites the display name and persists the record.
func (r *IncomingRequest) SetNickname(nickname string) error {
	r.nickname = nickname
	err := r.Save()
	r.manager.notifyUpdated(r, "nickname")
	return err
}

// Renew records a repeated contact attempt, refreshing lastRequestDate.
// The volatile fields are overwritten by the manager through the individual
// setters before Renew is called.
func (r *IncomingRequest) Renew() error {
	r.lastRequestDate = r.manager.clk.Now()
	err := r.Save()
	r.manager.notifyUpdated(r, "lastRequestDate")

	logrus.WithFields(logrus.Fields{
		"function":          "Renew",
		"hostname":          r.hostname,
		"last_request_date": r.lastRequestDate,
	}).Debug("Contact request renewed")
	return err
}

// Accept resolves the request by forming the contact relationship through
// the negotiation layer, answering the live connection if one is open, and
// retiring the record. The record is invalid once Accept returns nil.
func (r *IncomingRequest) Accept() error {
	logrus.WithFields(logrus.Fields{
		"function": "Accept",
		"hostname": r.hostname,
		"nickname": r.nickname,
	}).Info("Accepting contact request")

	if err := r.manager.adder.AddContact(r.hostname, r.nickname, r.remoteSecret); err != nil {
		return fmt.Errorf("finalize contact %s: %w", r.hostname, err)
	}

	if r.HasActiveConnection() {
		if err := r.conn.SendResponse(true); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":      "Accept",
				"hostname":      r.hostname,
				"connection_id": r.conn.ID(),
				"error":         err,
			}).Warn("Failed to answer live connection")
		}
	}

	return r.manager.removeRequest(r)
}

// Reject retires the record, signaling the live connection to tear down if
// one is open. Rejecting never touches the blacklist; blacklisting is a
// separate, explicit AddRejectedHost call.
func (r *IncomingRequest) Reject() error {
	logrus.WithFields(logrus.Fields{
		"function": "Reject",
		"hostname": r.hostname,
	}).Info("Rejecting contact request")

	if r.HasActiveConnection() {
		if err := r.conn.SendResponse(false); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":      "Reject",
				"hostname":      r.hostname,
				"connection_id": r.conn.ID(),
				"error":         err,
			}).Warn("Failed to answer live connection")
		}
	}

	return r.manager.removeRequest(r)
}

// Load reads the record's persisted fields from the settings store.
func (r *IncomingRequest) Load() error {
	store := r.manager.store

	if value, ok := store.Get(requestKey(r.hostname, "secret")); ok {
		secret, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return fmt.Errorf("decode remote secret for %s: %w", r.hostname, err)
		}
		r.remoteSecret = secret
	}
	if value, ok := store.Get(requestKey(r.hostname, "message")); ok {
		r.message = value
	}
	if value, ok := store.Get(requestKey(r.hostname, "nickname")); ok {
		r.nickname = value
	}
	if value, ok := store.Get(requestKey(r.hostname, "date")); ok {
		date, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return fmt.Errorf("parse request date for %s: %w", r.hostname, err)
		}
		r.requestDate = date
	}
	if value, ok := store.Get(requestKey(r.hostname, "lastRequestDate")); ok {
		date, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return fmt.Errorf("parse last request date for %s: %w", r.hostname, err)
		}
		r.lastRequestDate = date
	}
	return nil
}

// Save writes the record's fields to the settings store under the
// per-hostname request namespace.
func (r *IncomingRequest) Save() error {
	store := r.manager.store
	fields := []struct {
		name  string
		value string
	}{
		{"secret", base64.StdEncoding.EncodeToString(r.remoteSecret)},
		{"message", r.message},
		{"nickname", r.nickname},
		{"date", r.requestDate.Format(time.RFC3339Nano)},
		{"lastRequestDate", r.lastRequestDate.Format(time.RFC3339Nano)},
	}
	for _, field := range fields {
		if err := store.Set(requestKey(r.hostname, field.name), field.value); err != nil {
			return fmt.Errorf("persist %s for %s: %w", field.name, r.hostname, err)
		}
	}
	return nil
}
