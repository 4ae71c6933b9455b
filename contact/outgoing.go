package contact

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/onionmsg/storage"
)

// Outgoing-request bookkeeping. When the local identity sends a contact
// request, the peer's answer arrives as a transport event; these helpers
// keep the persisted request block in step with that answer.

// MarkOutgoingRequestPending records that a request sent to hostname is
// waiting on the remote peer.
func MarkOutgoingRequestPending(store storage.Store, hostname string) error {
	return store.Set(requestKey(hostname, "status"), "pending")
}

// ClearOutgoingRequest deletes the persisted request block for hostname
// once the remote peer has accepted; the contact relationship itself is
// the negotiation layer's to record.
func ClearOutgoingRequest(store storage.Store, hostname string) error {
	logrus.WithFields(logrus.Fields{
		"function": "ClearOutgoingRequest",
		"hostname": hostname,
	}).Debug("Clearing resolved outgoing request")
	return store.Delete(requestSubtree(hostname))
}

// OutgoingRequestPending reports whether a request sent to hostname is
// still awaiting an answer.
func OutgoingRequestPending(store storage.Store, hostname string) bool {
	value, ok := store.Get(requestKey(hostname, "status"))
	return ok && value == "pending"
}
