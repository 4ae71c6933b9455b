// Package contact implements the incoming contact-request registry for the
// local identity.
//
// # Overview
//
//   - IncomingRequest: one pending request from a remote peer, with its
//     persisted fields and accept/reject resolution
//   - RequestManager: the registry of pending requests keyed by peer
//     hostname, plus the persisted blacklist of rejected hosts
//
// A request is created the first time a hostname makes contact (or restored
// from the settings store at startup), renewed in place on repeated contact,
// and destroyed only by Accept or Reject. Every mutation writes through to
// the store immediately, so the persisted entry exists exactly as long as
// the request is unresolved.
//
// # Threading
//
// RequestManager and IncomingRequest perform no locking. All calls must come
// from the single goroutine that owns contact state; transport workers hand
// events over through a dispatch.Queue. The added/removed/updated callbacks
// fire on that same goroutine.
//
// # Hostnames
//
// Peers are identified by their v3 onion service ID. ValidOnionHostname
// checks the full encoding including the embedded checksum, and
// NormalizeHostname lowercases and strips the ".onion" label so registry
// keys stay in one canonical form.
package contact
