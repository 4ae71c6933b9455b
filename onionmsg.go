// Package onionmsg wires the incoming contact-request subsystem together: a
// settings store, the pending-request registry, and the dispatch queue that
// funnels transport events onto the one goroutine allowed to mutate shared
// state.
//
// Example:
//
//	client, err := onionmsg.New(&onionmsg.Options{
//	    ContactAdder: myNegotiationLayer,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Kill()
//
//	client.OnContactRequest(func(request *contact.IncomingRequest) {
//	    fmt.Printf("request from %s: %s\n", request.Hostname(), request.Message())
//	})
//
//	// From any transport goroutine:
//	client.HandleContactRequest(hostname, secret, conn, "Alice", "hi")
package onionmsg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/onionmsg/contact"
	"github.com/opd-ai/onionmsg/dispatch"
	"github.com/opd-ai/onionmsg/storage"
	"github.com/opd-ai/onionmsg/transport"
)

var (
	// ErrInvalidHostname is returned for ingress from a malformed onion
	// service ID.
	ErrInvalidHostname = errors.New("invalid onion hostname")

	// ErrHostnameRejected is returned for ingress from a blacklisted host.
	ErrHostnameRejected = errors.New("hostname is blacklisted")
)

// Options configures a Client.
type Options struct {
	// Store backs contact-request persistence. When nil, StorePath selects
	// a JSON file store, or an in-memory store if that is empty too.
	Store     storage.Store
	StorePath string

	// ConsumeInterval is the dispatch drain cadence. Zero uses
	// dispatch.DefaultConsumeInterval.
	ConsumeInterval time.Duration

	// Clock drives the drain timer and record timestamps. Nil uses the
	// wall clock.
	Clock clock.Clock

	// ContactAdder receives accepted requests. Required.
	ContactAdder transport.ContactAdder
}

// NewOptions creates Options with default values.
func NewOptions() *Options {
	return &Options{
		ConsumeInterval: dispatch.DefaultConsumeInterval,
	}
}

// Client owns the contact-request state for one local identity. It is
// constructed once at startup and torn down with Kill; the drain loop's
// lifetime is tied to the instance.
//
// All registry access runs on the client's single owning goroutine. The
// Handle* ingress methods and Do are safe to call from any goroutine;
// everything they schedule executes on the next drain tick.
type Client struct {
	options  *Options
	store    storage.Store
	requests *contact.RequestManager
	queue    *dispatch.Queue

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Client, loads the persisted pending requests, and starts
// the drain loop.
func New(options *Options) (*Client, error) {
	if options == nil {
		options = NewOptions()
	}
	if options.ContactAdder == nil {
		return nil, errors.New("onionmsg: Options.ContactAdder is required")
	}

	store := options.Store
	if store == nil {
		if options.StorePath != "" {
			fileStore, err := storage.OpenFile(options.StorePath)
			if err != nil {
				return nil, err
			}
			store = fileStore
		} else {
			store = storage.NewMemory()
		}
	}

	clk := options.Clock
	if clk == nil {
		clk = clock.New()
	}

	requests := contact.NewRequestManager(store, options.ContactAdder, clk)
	if err := requests.LoadRequests(); err != nil {
		return nil, err
	}

	queue := dispatch.New(clk, options.ConsumeInterval)
	ctx, cancel := context.WithCancel(context.Background())

	client := &Client{
		options:  options,
		store:    store,
		requests: requests,
		queue:    queue,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(client.done)
		queue.Run(ctx)
	}()

	logrus.WithFields(logrus.Fields{
		"function":         "New",
		"pending_requests": len(requests.Requests()),
	}).Info("Contact-request client started")
	return client, nil
}

// Requests exposes the registry. Its methods must only be called from the
// owning goroutine; use Do to get there.
func (c *Client) Requests() *contact.RequestManager {
	return c.requests
}

// Store returns the settings store backing the client.
func (c *Client) Store() storage.Store {
	return c.store
}

// OnContactRequest registers the callback fired when a new request enters
// the registry. Fired on the owning goroutine.
func (c *Client) OnContactRequest(callback func(*contact.IncomingRequest)) {
	c.requests.OnRequestAdded(callback)
}

// OnContactRequestRemoved registers the callback fired when a request is
// resolved. Consumers must drop their reference to the record.
func (c *Client) OnContactRequestRemoved(callback func(*contact.IncomingRequest)) {
	c.requests.OnRequestRemoved(callback)
}

// OnContactRequestUpdated registers the per-field change callback.
func (c *Client) OnContactRequestUpdated(callback func(*contact.IncomingRequest, string)) {
	c.requests.OnRequestUpdated(callback)
}

// HandleContactRequest is the transport-layer ingress point for new and
// renewed contact requests. Safe to call from any goroutine; the registry
// mutation happens on the next drain tick.
//
// Blacklisted hosts are refused here, before a record is created: the
// connection is answered with a rejection and closed, and the registry is
// never touched.
func (c *Client) HandleContactRequest(hostname string, secret []byte, conn transport.Conn, nickname, message string) error {
	if !contact.ValidOnionHostname(hostname) {
		return fmt.Errorf("%w: %q", ErrInvalidHostname, hostname)
	}
	host := contact.NormalizeHostname(hostname)

	if c.requests.IsHostnameRejected(host) {
		logrus.WithFields(logrus.Fields{
			"function": "HandleContactRequest",
			"hostname": host,
		}).Info("Refusing contact request from blacklisted host")
		if conn != nil {
			if err := conn.SendResponse(false); err != nil {
				logrus.WithFields(logrus.Fields{
					"function":      "HandleContactRequest",
					"hostname":      host,
					"connection_id": conn.ID(),
					"error":         err,
				}).Warn("Failed to refuse blacklisted connection")
			}
			_ = conn.Close()
		}
		return fmt.Errorf("%w: %s", ErrHostnameRejected, host)
	}

	secretCopy := append([]byte(nil), secret...)
	c.queue.Push(func() {
		if _, err := c.requests.AddRequest(host, secretCopy, conn, nickname, message); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "HandleContactRequest",
				"hostname": host,
				"error":    err,
			}).Error("Failed to record contact request")
		}
	})
	return nil
}

// HandleConnectionClosed clears the live-connection handle for hostname
// once the transport layer reports the session closed. Safe to call from
// any goroutine.
func (c *Client) HandleConnectionClosed(hostname string) {
	host := contact.NormalizeHostname(hostname)
	c.queue.Push(func() {
		if request, ok := c.requests.RequestFromHostname(host); ok {
			request.SetConnection(nil)
		}
	})
}

// Do schedules fn onto the owning goroutine. Consumers resolving requests
// from other goroutines use this to call Accept, Reject, or the blacklist
// mutators.
func (c *Client) Do(fn func()) {
	c.queue.Push(fn)
}

// Kill stops the drain loop, executes any work that was still queued, and
// releases the store. The client must not be used afterwards.
func (c *Client) Kill() {
	c.cancel()
	<-c.done

	// Stragglers pushed before shutdown still run exactly once, now on the
	// caller's goroutine, which becomes the owning goroutine for them.
	c.queue.DrainOnce()

	if closer, ok := c.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Kill",
				"error":    err,
			}).Warn("Failed to close settings store")
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Kill",
	}).Info("Contact-request client stopped")
}
