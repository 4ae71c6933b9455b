package contact

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/onionmsg/storage"
)

// SettingsContactAdder forms accepted contacts by writing them into the
// settings store under contacts.<hostname>. Deployments with a separate
// negotiation layer supply their own transport.ContactAdder instead.
type SettingsContactAdder struct {
	store storage.Store
}

// NewSettingsContactAdder creates an adder persisting contacts to store.
func NewSettingsContactAdder(store storage.Store) *SettingsContactAdder {
	return &SettingsContactAdder{store: store}
}

// AddContact implements transport.ContactAdder.
func (a *SettingsContactAdder) AddContact(hostname, nickname string, secret []byte) error {
	entries := map[string]string{
		"contacts." + hostname + ".nickname":    nickname,
		"contacts." + hostname + ".whenCreated": time.Now().Format(time.RFC3339Nano),
	}
	for key, value := range entries {
		if err := a.store.Set(key, value); err != nil {
			return fmt.Errorf("persist contact %s: %w", hostname, err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "AddContact",
		"hostname": hostname,
		"nickname": nickname,
	}).Info("Contact created from accepted request")
	return nil
}
