package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/opd-ai/onionmsg"
	"github.com/opd-ai/onionmsg/contact"
	"github.com/opd-ai/onionmsg/storage"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("onionmsgd failed")
	}
}

func run() error {
	if err := loadConfig(); err != nil {
		return err
	}

	level, err := logrus.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logrus.SetLevel(level)

	store, err := openStore()
	if err != nil {
		return err
	}

	client, err := onionmsg.New(&onionmsg.Options{
		Store:           store,
		ConsumeInterval: viper.GetDuration("dispatch.interval"),
		ContactAdder:    contact.NewSettingsContactAdder(store),
	})
	if err != nil {
		return err
	}
	defer client.Kill()

	client.OnContactRequest(func(request *contact.IncomingRequest) {
		logrus.WithFields(logrus.Fields{
			"hostname": request.Hostname(),
			"nickname": request.Nickname(),
			"message":  request.Message(),
		}).Info("Contact request received")
	})
	client.OnContactRequestRemoved(func(request *contact.IncomingRequest) {
		logrus.WithFields(logrus.Fields{
			"hostname": request.Hostname(),
		}).Info("Contact request resolved")
	})

	client.Do(func() {
		for _, request := range client.Requests().Requests() {
			logrus.WithFields(logrus.Fields{
				"hostname":     request.Hostname(),
				"nickname":     request.Nickname(),
				"first_seen":   request.RequestDate(),
				"last_renewed": request.LastRequestDate(),
			}).Info("Pending contact request")
		}
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logrus.WithField("signal", sig.String()).Info("Shutting down")
	return nil
}

func loadConfig() error {
	viper.SetConfigName("onionmsgd")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.onionmsgd")

	viper.SetDefault("store.driver", "file")
	viper.SetDefault("store.path", "settings.json")
	viper.SetDefault("dispatch.interval", "10ms")
	viper.SetDefault("log.level", "info")

	viper.SetEnvPrefix("onionmsgd")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logrus.Debug("No config file found, using defaults")
	}
	return nil
}

func openStore() (storage.Store, error) {
	driver := viper.GetString("store.driver")
	path := viper.GetString("store.path")

	switch driver {
	case "file":
		return storage.OpenFile(path)
	case "sqlite":
		return storage.OpenSQLite(path)
	case "memory":
		return storage.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
