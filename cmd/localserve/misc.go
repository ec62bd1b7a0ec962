package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/lukaszraczylo/localserve/internal/config"
	"github.com/lukaszraczylo/localserve/internal/hosts"
	"github.com/lukaszraczylo/localserve/internal/lock"
	"github.com/lukaszraczylo/localserve/internal/tui"
	"github.com/lukaszraczylo/localserve/internal/version"
	"github.com/lukaszraczylo/localserve/internal/watch"
)

// newWatcher watches the hosts file and, when it can be located, the servers directory.
func (a *app) newWatcher(ctx context.Context) (*watch.Watcher, error) {
	w, err := watch.New(watch.DefaultDebounce, a.cfg.Sites.Ignore, a.logger)
	if err != nil {
		return nil, err
	}
	if err := w.AddFile(a.registry.Path()); err != nil {
		w.Close()
		return nil, err
	}

	dir, err := a.store.Dir(ctx)
	if err == nil {
		err = w.AddDir(dir)
	}
	if err != nil {
		a.logger.Warn("not watching site configs", "error", err)
	}
	return w, nil
}

func runWatch(ctx context.Context, e *env, args []string) error {
	if len(args) != 0 {
		return usageError("watch takes no arguments")
	}

	w, err := e.app.newWatcher(ctx)
	if err != nil {
		return err
	}
	defer w.Close()

	changes := w.Start(ctx)
	for {
		servers, err := e.app.servers(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(e.stderr, "Error: %v\n", err)
		} else {
			fmt.Fprintf(e.stdout, "\n[%s]\n", time.Now().Format("15:04:05"))
			printServers(e, servers)
		}

		if _, ok := <-changes; !ok {
			return nil
		}
	}
}

func runTUI(ctx context.Context, e *env) error {
	// Logs would tear the alternate screen, so they go to a file when asked for.
	var logOut io.Writer = io.Discard
	if e.opts.verbose {
		logPath := filepath.Join(filepath.Dir(e.opts.configPath), "tui.log")
		// #nosec G302,G304 - Path comes from the user's own config directory
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open TUI log: %w", err)
		}
		defer f.Close()
		logOut = f
	}

	a, err := newApp(ctx, e.opts, logOut)
	if err != nil {
		return err
	}
	defer a.Close()

	held, err := lock.TryAcquire(filepath.Join(a.configDir, lock.FileName))
	if err != nil {
		return fmt.Errorf("cannot start the TUI: %w", err)
	}
	defer held.Release()

	opts := []tui.Option{
		tui.WithTemplates(a.store.Catalog().Names()),
		tui.WithBackups(a.backups, a.registry),
		tui.WithAudit(a.audit),
		tui.WithUpdateCheck(version.NewChecker(githubOwner, githubRepo, version.Version)),
	}

	w, err := a.newWatcher(ctx)
	if err != nil {
		a.logger.Warn("auto-refresh disabled", "error", err)
	} else {
		defer w.Close()
		opts = append(opts, tui.WithChanges(w.Start(ctx)))
	}

	return tui.Run(a.mgr, opts...)
}

func runDoctor(ctx context.Context, e *env, args []string) error {
	if len(args) != 0 {
		return usageError("doctor takes no arguments")
	}
	a := e.app
	failed := 0

	check := func(name string, detail string, err error) {
		if err != nil {
			failed++
			fmt.Fprintf(e.stdout, "✗ %-14s %v\n", name, err)
			return
		}
		fmt.Fprintf(e.stdout, "✓ %-14s %s\n", name, detail)
	}

	if _, err := os.Stat(e.opts.configPath); err == nil {
		check("config", e.opts.configPath, nil)
	} else {
		check("config", "defaults (run: localserve init)", nil)
	}

	v, err := a.web.Version(ctx)
	check("nginx", v, err)

	root, err := a.web.ConfigRoot(ctx)
	check("config root", root, err)

	if dir, err := a.store.Dir(ctx); err != nil {
		check("servers dir", "", err)
	} else if names, err := a.store.List(ctx); err != nil {
		check("servers dir", "", err)
	} else {
		check("servers dir", fmt.Sprintf("%s (%d sites)", dir, len(names)), nil)
	}

	section := a.cfg.Hosts.Section
	switch entries, err := a.registry.Entries(section); {
	case errors.Is(err, hosts.ErrSectionNotFound):
		check("hosts file", fmt.Sprintf("%s (no %q section yet)", a.registry.Path(), section), nil)
	case err != nil:
		check("hosts file", "", err)
	default:
		check("hosts file", fmt.Sprintf("%s (%d managed entries)", a.registry.Path(), len(entries)), nil)
	}

	if orphans, err := a.mgr.Orphans(ctx); err == nil && len(orphans) > 0 {
		fmt.Fprintf(e.stdout, "! %-14s %d managed entries have no site config (see: localserve list)\n", "orphans", len(orphans))
	}

	check("dns flush", string(a.flusher.Method()), nil)

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func runInit(_ context.Context, e *env, args []string) error {
	if len(args) != 0 {
		return usageError("init takes no arguments")
	}
	if err := config.CreateDefault(e.opts.configPath); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "✓ Wrote %s\n", e.opts.configPath)
	return nil
}

func runVersion(ctx context.Context, e *env, args []string) error {
	flagSet := newFlags(e, "version")
	checkUpdate := flagSet.Bool("check", false, "check GitHub for a newer release")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	fmt.Fprintln(e.stdout, version.String())
	if !*checkUpdate {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	update, err := version.NewChecker(githubOwner, githubRepo, version.Version).Check(ctx)
	if err != nil {
		return err
	}
	if update == nil {
		fmt.Fprintln(e.stdout, "You are running the latest version.")
		return nil
	}
	fmt.Fprintln(e.stdout, update)
	return nil
}
