// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/corevault-io/core/internal/app"
	"github.com/corevault-io/core/internal/collaborators"
	"github.com/corevault-io/core/internal/config"
	"github.com/corevault-io/core/internal/logger"
	"github.com/corevault-io/core/internal/notetui"
	"github.com/corevault-io/core/internal/storage"
	"github.com/corevault-io/core/internal/transport"
)

// App is the concrete interactive client runtime: it launches the
// application core, authenticates the configured account, starts the
// background sync job, and runs the notes TUI until the user quits.
type App struct {
	core *app.App
	job  *app.SyncJob
	cfg  *config.ClientConfig
	log  *logger.Logger
}

// NewApp constructs the storage facade, transport, and application core
// from cfg, wiring them in the order internal/app.New documents.
func NewApp(ctx context.Context, cfg *config.ClientConfig, log *logger.Logger) (*App, error) {
	store, err := storage.NewSQLiteFacade(ctx, cfg.Storage.DB.DSN, log)
	if err != nil {
		return nil, fmt.Errorf("client: open storage: %w", err)
	}

	tr := transport.NewHTTPTransport(transport.HTTPConfig{
		BaseURL: cfg.Adapter.HTTPAddress,
		Timeout: cfg.Adapter.RequestTimeout,
	})

	appCfg := app.Config{
		Namespace:  cfg.Account.Namespace,
		Identifier: cfg.Account.Identifier,
	}
	core := app.New(appCfg, log, tr, store, collaborators.NewDefaultUUIDGenerator())

	return &App{core: core, job: app.NewSyncJob(core), cfg: cfg, log: log}, nil
}

// Run launches the application core, authenticates the configured
// account, starts the background sync job, and runs the notes TUI to
// completion.
func (a *App) Run() error {
	ctx := context.Background()

	if err := a.core.Launch(ctx); err != nil {
		return fmt.Errorf("client: launch: %w", err)
	}

	if err := a.authenticate(ctx); err != nil {
		return fmt.Errorf("client: authenticate: %w", err)
	}

	a.job.Start(ctx, a.cfg.Workers.SyncInterval)
	defer a.job.Stop()

	return notetui.Run(ctx, a.core)
}

// authenticate registers a brand-new account on first run (no root key
// params stored yet for this namespace) or signs in otherwise, prompting
// for the password on stdin. A graphical login flow belongs in a host
// application; this CLI demo keeps it to the minimum spec §4.2/§4.3
// require.
func (a *App) authenticate(ctx context.Context) error {
	hasAccount, err := a.core.HasStoredAccount()
	if err != nil {
		return err
	}

	password, err := readPassword(hasAccount)
	if err != nil {
		return err
	}

	if hasAccount {
		return a.core.SignIn(ctx, password)
	}
	return a.core.Register(ctx, password)
}

func readPassword(existing bool) (string, error) {
	prompt := "Choose a password for this new account: "
	if existing {
		prompt = "Password: "
	}
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
