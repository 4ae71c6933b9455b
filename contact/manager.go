package contact

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/onionmsg/storage"
	"github.com/opd-ai/onionmsg/transport"
)

// blacklistKey holds the persisted set of rejected hostnames, as a JSON
// array of strings.
const blacklistKey = "contactRequests.blacklist"

// requestKey returns the settings key for one persisted field of the
// request from hostname.
func requestKey(hostname, field string) string {
	return "contacts." + hostname + ".request." + field
}

// requestSubtree returns the settings prefix holding every persisted field
// of the request from hostname.
func requestSubtree(hostname string) string {
	return "contacts." + hostname + ".request"
}

// RequestManager tracks the pending contact requests for the local
// identity, keyed by peer hostname, together with the persisted blacklist
// of rejected hosts.
//
// The manager holds no locks: the single-writer rule is the concurrency
// mechanism. Every method, and every callback it fires, runs on the one
// goroutine that owns contact state (see package dispatch). The only
// exception is the blacklist accessors, which touch nothing but the
// concurrency-safe store and may be consulted from transport goroutines at
// ingress.
type RequestManager struct {
	store storage.Store
	adder transport.ContactAdder
	clk   clock.Clock

	requests []*IncomingRequest

	addedCallback   func(*IncomingRequest)
	removedCallback func(*IncomingRequest)
	updatedCallback func(*IncomingRequest, string)
}

// NewRequestManager creates a registry over store, resolving accepted
// requests through adder. A nil clk uses the wall clock.
func NewRequestManager(store storage.Store, adder transport.ContactAdder, clk clock.Clock) *RequestManager {
	if clk == nil {
		clk = clock.New()
	}
	return &RequestManager{
		store: store,
		adder: adder,
		clk:   clk,
	}
}

// OnRequestAdded registers the callback fired when a new request enters the
// registry. Restored requests do not fire it; see LoadRequests.
func (m *RequestManager) OnRequestAdded(callback func(*IncomingRequest)) {
	m.addedCallback = callback
}

// OnRequestRemoved registers the callback fired when a request is resolved.
// Consumers must drop any reference they hold to the removed record.
func (m *RequestManager) OnRequestRemoved(callback func(*IncomingRequest)) {
	m.removedCallback = callback
}

// OnRequestUpdated registers the callback fired when a field of a pending
// request changes, with the field name.
func (m *RequestManager) OnRequestUpdated(callback func(*IncomingRequest, string)) {
	m.updatedCallback = callback
}

// LoadRequests materializes every persisted pending request into the
// registry. Restored records are populated silently: the added callback
// does not fire, and consumers read the initial set from Requests. Entries
// that fail to parse are logged and skipped.
func (m *RequestManager) LoadRequests() error {
	for _, hostname := range m.persistedHostnames() {
		if _, ok := m.RequestFromHostname(hostname); ok {
			continue
		}
		// Outgoing-request blocks carry only a status field; incoming
		// records always persist their first-seen date.
		if _, ok := m.store.Get(requestKey(hostname, "date")); !ok {
			continue
		}

		request := newIncomingRequest(m, hostname, nil)
		if err := request.Load(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "LoadRequests",
				"hostname": hostname,
				"error":    err,
			}).Warn("Skipping unreadable persisted contact request")
			continue
		}
		m.requests = append(m.requests, request)
	}

	logrus.WithFields(logrus.Fields{
		"function": "LoadRequests",
		"requests": len(m.requests),
	}).Info("Pending contact requests loaded")
	return nil
}

// persistedHostnames scans the store for hostnames with a persisted request
// subtree. Hostnames may contain dots, so keys are split on the ".request."
// marker rather than on every separator.
func (m *RequestManager) persistedHostnames() []string {
	const prefix = "contacts."
	const marker = ".request."

	var hostnames []string
	seen := make(map[string]bool)
	for _, key := range m.store.List("contacts") {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		idx := strings.Index(key[len(prefix):], marker)
		if idx <= 0 {
			continue
		}
		hostname := key[len(prefix) : len(prefix)+idx]
		if !seen[hostname] {
			seen[hostname] = true
			hostnames = append(hostnames, hostname)
		}
	}
	return hostnames
}

// AddRequest records a new or renewed contact attempt from hostname.
//
// A first attempt creates, persists, and registers a record and fires the
// added callback. A repeated attempt is a renewal: the existing record's
// volatile fields are overwritten with the latest values and its
// lastRequestDate refreshed, firing only field-changed notifications.
//
// The manager never consults the blacklist here; filtering rejected hosts
// is the caller's responsibility via IsHostnameRejected.
func (m *RequestManager) AddRequest(hostname string, secret []byte, conn transport.Conn, nickname, message string) (*IncomingRequest, error) {
	if existing, ok := m.RequestFromHostname(hostname); ok {
		logrus.WithFields(logrus.Fields{
			"function": "AddRequest",
			"hostname": hostname,
		}).Debug("Renewing pending contact request")

		if err := existing.SetRemoteSecret(secret); err != nil {
			return existing, err
		}
		existing.SetConnection(conn)
		if err := existing.SetNickname(nickname); err != nil {
			return existing, err
		}
		if err := existing.SetMessage(message); err != nil {
			return existing, err
		}
		if err := existing.Renew(); err != nil {
			return existing, err
		}
		return existing, nil
	}

	request := newIncomingRequest(m, hostname, conn)
	request.remoteSecret = append([]byte(nil), secret...)
	request.nickname = nickname
	request.message = message
	if err := request.Save(); err != nil {
		return nil, err
	}
	m.requests = append(m.requests, request)

	logrus.WithFields(logrus.Fields{
		"function": "AddRequest",
		"hostname": hostname,
		"nickname": nickname,
		"has_conn": conn != nil,
	}).Info("Contact request added")

	if m.addedCallback != nil {
		m.addedCallback(request)
	}
	return request, nil
}

// Requests returns a snapshot of the pending requests.
func (m *RequestManager) Requests() []*IncomingRequest {
	out := make([]*IncomingRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestFromHostname looks up the pending request for hostname. An absent
// hostname is a normal condition, not an error.
func (m *RequestManager) RequestFromHostname(hostname string) (*IncomingRequest, bool) {
	for _, request := range m.requests {
		if request.hostname == hostname {
			return request, true
		}
	}
	return nil, false
}

// removeRequest deletes the persisted entry, unregisters the record, and
// fires the removed callback. Only Accept and Reject call it; the record is
// invalid afterwards.
func (m *RequestManager) removeRequest(request *IncomingRequest) error {
	if err := m.store.Delete(requestSubtree(request.hostname)); err != nil {
		return fmt.Errorf("remove persisted request for %s: %w", request.hostname, err)
	}

	for i, candidate := range m.requests {
		if candidate == request {
			m.requests = append(m.requests[:i], m.requests[i+1:]...)
			break
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "removeRequest",
		"hostname": request.hostname,
	}).Info("Contact request removed")

	if m.removedCallback != nil {
		m.removedCallback(request)
	}
	return nil
}

// AddRejectedHost adds hostname to the persisted blacklist. Idempotent. An
// existing pending request for the hostname is left untouched; the registry
// never auto-purges on blacklist changes.
func (m *RequestManager) AddRejectedHost(hostname string) error {
	hosts := m.RejectedHosts()
	for _, host := range hosts {
		if host == hostname {
			return nil
		}
	}
	hosts = append(hosts, hostname)

	data, err := json.Marshal(hosts)
	if err != nil {
		return fmt.Errorf("encode blacklist: %w", err)
	}
	if err := m.store.Set(blacklistKey, string(data)); err != nil {
		return fmt.Errorf("persist blacklist: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "AddRejectedHost",
		"hostname": hostname,
	}).Info("Host blacklisted")
	return nil
}

// IsHostnameRejected reports whether hostname is blacklisted.
func (m *RequestManager) IsHostnameRejected(hostname string) bool {
	for _, host := range m.RejectedHosts() {
		if host == hostname {
			return true
		}
	}
	return false
}

// RejectedHosts returns the persisted blacklist.
func (m *RequestManager) RejectedHosts() []string {
	value, ok := m.store.Get(blacklistKey)
	if !ok {
		return nil
	}
	var hosts []string
	if err := json.Unmarshal([]byte(value), &hosts); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "RejectedHosts",
			"error":    err,
		}).Warn("Discarding unreadable blacklist")
		return nil
	}
	return hosts
}

func (m *RequestManager) notifyUpdated(request *IncomingRequest, field string) {
	if m.updatedCallback != nil {
		m.updatedCallback(request, field)
	}
}
