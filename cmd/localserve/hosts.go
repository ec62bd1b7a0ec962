package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lukaszraczylo/localserve/internal/config"
	"github.com/lukaszraczylo/localserve/internal/hosts"
)

func runHosts(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return usageError("hosts needs a subcommand")
	}

	switch args[0] {
	case "list", "ls":
		return runHostsList(ctx, e, args[1:])
	case "add":
		return withLock(ctx, e, func() error { return runHostsAdd(ctx, e, args[1:]) })
	case "rm", "remove":
		return withLock(ctx, e, func() error { return runHostsRemove(ctx, e, args[1:]) })
	default:
		return usageError("unknown hosts subcommand %q", args[0])
	}
}

// withLock runs fn holding the process lock. Used by subcommands whose parent
// command does not mutate.
func withLock(ctx context.Context, e *env, fn func() error) error {
	release, err := e.app.lock(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func runHostsList(_ context.Context, e *env, args []string) error {
	flagSet := newFlags(e, "hosts list")
	all := flagSet.BoolP("all", "a", false, "show the whole hosts file instead of the managed section")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	section := e.app.cfg.Hosts.Section
	if *all {
		section = ""
	}

	lines, err := e.app.registry.List(section)
	if errors.Is(err, hosts.ErrSectionNotFound) {
		fmt.Fprintf(e.stdout, "No managed section %q in %s\n", section, e.app.registry.Path())
		return nil
	}
	if err != nil {
		return err
	}

	for _, line := range lines {
		fmt.Fprintln(e.stdout, hosts.Serialize(line))
	}
	if section != "" {
		fmt.Fprintln(e.stdout, hosts.EndMarker(section))
	}
	return nil
}

func runHostsAdd(ctx context.Context, e *env, args []string) error {
	flagSet := newFlags(e, "hosts add")
	comment := flagSet.String("comment", "", "comment stored after the entry")
	unmanaged := flagSet.Bool("unmanaged", false, "append outside the managed section")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 2 {
		return usageError("hosts add needs an address and a hostname")
	}

	address, hostname := flagSet.Arg(0), strings.ToLower(flagSet.Arg(1))
	if config.IsBlockedDomain(hostname) {
		return fmt.Errorf("hostname %s is protected and cannot be mapped locally", hostname)
	}

	section := e.app.cfg.Hosts.Section
	if *unmanaged {
		section = ""
	}

	added, err := e.app.registry.Add(ctx, address, hostname, *comment, section)
	e.app.audit.Log("hosts-add", "", hostname, map[string]string{"address": address, "section": section}, err)
	if err != nil {
		return err
	}

	if !added {
		fmt.Fprintf(e.stdout, "%s %s is already present\n", address, hostname)
		return nil
	}
	e.app.flush(ctx)
	fmt.Fprintf(e.stdout, "✓ Added %s %s\n", address, hostname)
	return nil
}

func runHostsRemove(ctx context.Context, e *env, args []string) error {
	flagSet := newFlags(e, "hosts rm")
	comment := flagSet.String("comment", "", "remove managed entries carrying this comment instead")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	var (
		removed bool
		err     error
		details map[string]string
	)
	switch {
	case *comment != "" && flagSet.NArg() == 0:
		details = map[string]string{"comment": *comment}
		removed, err = e.app.registry.RemoveByCommentIn(ctx, e.app.cfg.Hosts.Section, *comment)
	case *comment == "" && flagSet.NArg() == 2:
		details = map[string]string{"address": flagSet.Arg(0), "hostname": flagSet.Arg(1)}
		removed, err = e.app.registry.Remove(ctx, flagSet.Arg(0), flagSet.Arg(1))
	default:
		return usageError("hosts rm needs an address and a hostname, or --comment")
	}

	e.app.audit.Log("hosts-rm", "", details["hostname"], details, err)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Fprintln(e.stdout, "No matching entries")
		return nil
	}
	e.app.flush(ctx)
	fmt.Fprintln(e.stdout, "✓ Removed")
	return nil
}

// flush clears resolver caches after a direct hosts edit. Failures are only logged.
func (a *app) flush(ctx context.Context) {
	if err := a.flusher.Flush(ctx); err != nil {
		a.logger.Warn("failed to flush DNS cache", "error", err)
	}
}

func runBackups(_ context.Context, e *env, args []string) error {
	if len(args) != 0 {
		return usageError("backups takes no arguments")
	}

	backups, err := e.app.backups.List()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		fmt.Fprintf(e.stdout, "No backups in %s\n", e.app.backups.Dir())
		return nil
	}

	w := tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMODIFIED\tSIZE")
	for _, b := range backups {
		fmt.Fprintf(w, "%s\t%s\t%d\n", b.Name, time.Unix(b.Timestamp, 0).Format("2006-01-02 15:04:05"), b.Size)
	}
	return w.Flush()
}

func runRestore(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return usageError("restore needs a backup name")
	}

	err := e.app.registry.Restore(ctx, args[0])
	e.app.audit.Log("restore", "", "", map[string]string{"backup": args[0]}, err)
	if err != nil {
		return err
	}

	e.app.flush(ctx)
	fmt.Fprintf(e.stdout, "✓ Restored %s from %s\n", e.app.registry.Path(), args[0])
	return nil
}
