package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/lukaszraczylo/localserve/internal/audit"
	cmdrun "github.com/lukaszraczylo/localserve/internal/command"
	"github.com/lukaszraczylo/localserve/internal/config"
	"github.com/lukaszraczylo/localserve/internal/dns"
	"github.com/lukaszraczylo/localserve/internal/hosts"
	"github.com/lukaszraczylo/localserve/internal/lock"
	"github.com/lukaszraczylo/localserve/internal/logger"
	"github.com/lukaszraczylo/localserve/internal/manager"
	"github.com/lukaszraczylo/localserve/internal/nginx"
	"github.com/lukaszraczylo/localserve/internal/sites"
)

// lockTimeout bounds how long a command waits for another to finish.
const lockTimeout = 30 * time.Second

// app holds the wired components for one invocation.
type app struct {
	cfg       *config.Config
	configDir string
	logger    *slog.Logger

	web      *nginx.Server
	backups  *hosts.Backups
	registry *hosts.Registry
	store    *sites.Store
	flusher  *dns.Flusher
	mgr      *manager.Manager
	audit    *audit.Logger
}

func newApp(_ context.Context, opts options, stderr io.Writer) (*app, error) {
	cfgManager := config.NewManager(opts.configPath)
	if err := cfgManager.LoadOrDefault(); err != nil {
		return nil, err
	}
	cfg := cfgManager.Get()

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger.Init(logger.Config{Level: level, Format: cfg.Log.Format, Output: stderr})

	runner := cmdrun.New(logger.ForComponent("command"), cmdrun.DefaultExtraPath...)
	web := nginx.New(runner, cfg.WebServer.Binary, cfg.WebServer.ConfigRoot)

	var writer hosts.Writer = hosts.FileWriter{}
	if cfg.Hosts.WriteMode == config.WriteModeSudo {
		writer = hosts.SudoWriter{Runner: runner, Sudo: cfg.Hosts.Sudo}
	}

	backups := hosts.NewBackups(cfg.Hosts.BackupDir, cfg.Hosts.MaxBackups)
	registry := hosts.NewRegistry(cfg.Hosts.Path,
		hosts.WithWriter(writer),
		hosts.WithBackups(backups),
		hosts.WithLogger(logger.ForComponent("hosts")),
	)

	store := sites.NewStore(web, web,
		sites.WithServersDir(cfg.WebServer.ServersDir),
		sites.WithSitesRoot(cfg.Sites.Root),
		sites.WithIgnore(cfg.Sites.Ignore),
		sites.WithDefaults(cfg.Sites.Defaults),
		sites.WithStoreLogger(logger.ForComponent("sites")),
	)

	sudo := ""
	if cfg.Hosts.WriteMode == config.WriteModeSudo {
		sudo = cfg.Hosts.Sudo
	}
	flusher := dns.NewFlusher(cfg.Settings.FlushMethod, runner, sudo)

	mgr := manager.New(registry, store,
		manager.WithSection(cfg.Hosts.Section),
		manager.WithAddress(cfg.Hosts.Address),
		manager.WithFlusher(flusher),
		manager.WithLogger(logger.ForComponent("manager")),
	)

	configDir := filepath.Dir(opts.configPath)
	auditLog, err := audit.Open(filepath.Join(configDir, audit.FileName))
	if err != nil {
		// Commands still work without an audit trail.
		slog.Warn("audit log unavailable", "error", err)
	}

	return &app{
		cfg:       cfg,
		configDir: configDir,
		logger:    logger.ForComponent("cli"),
		web:       web,
		backups:   backups,
		registry:  registry,
		store:     store,
		flusher:   flusher,
		mgr:       mgr,
		audit:     auditLog,
	}, nil
}

// lock waits for the process lock and returns its release func.
func (a *app) lock(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	l, err := lock.Acquire(ctx, filepath.Join(a.configDir, lock.FileName))
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	return func() {
		if err := l.Release(); err != nil {
			a.logger.Warn("failed to release lock", "error", err)
		}
	}, nil
}

// Close releases resources held by the app.
func (a *app) Close() error {
	return a.audit.Close()
}
