package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/opsdesk/userconsole/internal/config"
	"github.com/opsdesk/userconsole/internal/credential"
	"github.com/opsdesk/userconsole/internal/logging"
	"github.com/opsdesk/userconsole/internal/metrics"
	"github.com/opsdesk/userconsole/internal/notification"
	"github.com/opsdesk/userconsole/internal/otp"
	"github.com/opsdesk/userconsole/internal/transport"
	"github.com/opsdesk/userconsole/internal/users"
)

// runtime is what every command needs: configuration, logging and a client
// for the remote service.
type runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	creds    *credential.Store
	metrics  *metrics.Metrics
	client   *transport.Client
	users    *users.Gateway
	otp      *otp.Gateway
	notifier notification.Notifier
}

func newRuntime(logOut, noticeOut io.Writer) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewWithWriter(logOut, cfg.LogLevel)

	var creds *credential.Store
	credLogger := logging.Component(logger, "credential")
	if cfg.ServiceTokenFile != "" {
		creds, err = credential.NewFileStore(cfg.ServiceTokenFile, credLogger)
	} else {
		creds, err = credential.NewStore(cfg.ServiceToken, credLogger)
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	m := metrics.New()
	client, err := transport.New(cfg.ServiceURL, creds,
		transport.WithTimeout(cfg.ServiceTimeout),
		transport.WithLogger(logging.Component(logger, "transport")),
		transport.WithObserver(m),
	)
	if err != nil {
		return nil, fmt.Errorf("build client: %w", err)
	}

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		creds:    creds,
		metrics:  m,
		client:   client,
		users:    users.NewGateway(client, logging.Component(logger, "users")),
		otp:      otp.NewGateway(client, logging.Component(logger, "otp")),
		notifier: notification.NewWriterNotifier(noticeOut),
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
