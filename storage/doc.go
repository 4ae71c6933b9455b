// Package storage provides the flat, string-keyed settings store backing
// contact-request persistence.
//
// Keys form a hierarchy by dotted-path convention, matching the settings
// layout of the desktop client:
//
//	contacts.<hostname>.request.secret
//	contacts.<hostname>.request.message
//	contacts.<hostname>.request.nickname
//	contacts.<hostname>.request.date
//	contacts.<hostname>.request.lastRequestDate
//	contactRequests.blacklist
//
// Delete removes a key together with every dotted descendant, so clearing
// "contacts.<hostname>.request" retires a whole persisted request in one
// call.
//
// Three backends are provided:
//
//   - Memory: process-local map, used by tests and as the default backend
//   - File: a single JSON object rewritten on every mutation
//   - SQLite: a key/value table, for installations that already carry a
//     database file
//
// All backends are safe for concurrent use. Value encoding is the caller's
// concern; the store only moves strings.
package storage
