// Command onionmsgd runs a standalone contact-request manager.
//
// It wires a settings store, the request registry, and the dispatch loop
// into a long-running process that logs request lifecycle events. The
// transport layer is expected to feed it through the onionmsg.Client API;
// on its own the daemon is mainly useful for inspecting and resolving the
// persisted pending requests of an existing profile.
//
// Configuration is read from onionmsgd.yaml in the working directory or
// ~/.onionmsgd, overridable through ONIONMSGD_* environment variables:
//
//	store:
//	  driver: file        # file | sqlite | memory
//	  path: settings.json
//	dispatch:
//	  interval: 10ms
//	log:
//	  level: info
package main
