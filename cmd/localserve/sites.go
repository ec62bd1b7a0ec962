package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/lukaszraczylo/localserve/internal/config"
	"github.com/lukaszraczylo/localserve/internal/manager"
)

const restartReminder = "Restart nginx to apply the change (for example: sudo nginx -s reload)."

func statusGlyph(state manager.State) string {
	switch state {
	case manager.Linked:
		return "●"
	case manager.HostOnly:
		return "!"
	default:
		return "○"
	}
}

// servers returns every site plus the managed entries no site declares.
func (a *app) servers(ctx context.Context) ([]manager.Server, error) {
	servers, err := a.mgr.List(ctx)
	if err != nil {
		return nil, err
	}
	orphans, err := a.mgr.Orphans(ctx)
	if err != nil {
		return nil, err
	}
	for i := range orphans {
		entry := orphans[i]
		servers = append(servers, manager.Server{Hostname: entry.Hostname, Entry: &entry})
	}
	return servers, nil
}

func runList(ctx context.Context, e *env, args []string) error {
	if len(args) != 0 {
		return usageError("list takes no arguments")
	}

	servers, err := e.app.servers(ctx)
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		fmt.Fprintln(e.stdout, "No sites configured.")
		return nil
	}

	printServers(e, servers)
	return nil
}

func printServers(e *env, servers []manager.Server) {
	w := tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tSITE\tHOSTNAME\tADDRESS\tSTATE")
	fmt.Fprintln(w, "------\t----\t--------\t-------\t-----")

	for _, s := range servers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			statusGlyph(s.State()), orDash(s.Site), orDash(s.Hostname), orDash(s.Address()), s.State())
	}
	w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func runCreate(ctx context.Context, e *env, args []string) error {
	flagSet := newFlags(e, "create")
	props := flagSet.StringToStringP("prop", "p", nil, "template property as key=value (repeatable)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 3 {
		return usageError("create needs a type, a name and a hostname")
	}

	typ, name, hostname := flagSet.Arg(0), flagSet.Arg(1), strings.ToLower(flagSet.Arg(2))
	if config.IsBlockedDomain(hostname) {
		return fmt.Errorf("hostname %s is protected and cannot be mapped locally", hostname)
	}

	event, err := e.app.mgr.Create(ctx, typ, name, hostname, *props)
	e.app.audit.Log(string(manager.EventCreated), name, hostname, map[string]any{"type": typ, "props": *props}, err)
	if err != nil {
		if event.ConfigChanged {
			fmt.Fprintf(e.stderr, "Site config %s was written; fix the hosts file and run: localserve enable %s\n", name, name)
		}
		return err
	}

	fmt.Fprintf(e.stdout, "✓ Created %s → %s\n", name, hostname)
	if !event.HostsChanged {
		fmt.Fprintf(e.stdout, "  %s was already mapped\n", hostname)
	}
	fmt.Fprintln(e.stdout, restartReminder)
	return nil
}

// findServer resolves the single site argument of a command.
func findServer(ctx context.Context, e *env, cmd string, args []string) (manager.Server, error) {
	if len(args) != 1 {
		return manager.Server{}, usageError("%s needs exactly one site", cmd)
	}
	return e.app.mgr.Find(ctx, args[0])
}

func runEnable(ctx context.Context, e *env, args []string) error {
	server, err := findServer(ctx, e, "enable", args)
	if err != nil {
		return err
	}

	event, err := e.app.mgr.Enable(ctx, server)
	e.app.audit.Log(string(manager.EventEnabled), server.Site, server.Hostname, nil, err)
	if err != nil {
		return err
	}

	if event.HostsChanged {
		fmt.Fprintf(e.stdout, "✓ Enabled: %s → %s\n", server.Site, server.Hostname)
	} else {
		fmt.Fprintf(e.stdout, "%s is already enabled\n", server.Site)
	}
	return nil
}

func runDisable(ctx context.Context, e *env, args []string) error {
	server, err := findServer(ctx, e, "disable", args)
	if err != nil {
		return err
	}
	if server.Entry == nil {
		fmt.Fprintf(e.stdout, "%s is already disabled\n", server.Site)
		return nil
	}

	event, err := e.app.mgr.Disable(ctx, server)
	e.app.audit.Log(string(manager.EventDisabled), server.Site, server.Hostname, nil, err)
	if err != nil {
		return err
	}

	if event.HostsChanged {
		fmt.Fprintf(e.stdout, "✓ Disabled: %s → %s\n", server.Site, server.Hostname)
	} else {
		fmt.Fprintf(e.stdout, "No host entries found for %s\n", server.Site)
	}
	return nil
}

func runDestroy(ctx context.Context, e *env, args []string) error {
	server, err := findServer(ctx, e, "destroy", args)
	if err != nil {
		return err
	}

	event, err := e.app.mgr.Destroy(ctx, server)
	e.app.audit.Log(string(manager.EventDestroyed), server.Site, server.Hostname, nil, err)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.stdout, "✓ Destroyed %s (%s)\n", server.Site, event)
	if event.ConfigChanged {
		fmt.Fprintln(e.stdout, restartReminder)
	}
	return nil
}

func runInfo(ctx context.Context, e *env, args []string) error {
	server, err := findServer(ctx, e, "info", args)
	if err != nil {
		return err
	}

	meta, err := e.app.store.ReadMetadata(ctx, server.Site)
	if err != nil {
		return err
	}
	dir, err := e.app.store.Dir(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Site:\t%s\n", server.Site)
	fmt.Fprintf(w, "Config:\t%s\n", filepath.Join(dir, server.Site))
	fmt.Fprintf(w, "Type:\t%s\n", orDash(meta.Type()))
	fmt.Fprintf(w, "Hostname:\t%s\n", orDash(server.Hostname))
	fmt.Fprintf(w, "Address:\t%s\n", orDash(server.Address()))
	fmt.Fprintf(w, "Status:\t%s %s\n", statusGlyph(server.State()), server.State())
	w.Flush()

	props := meta.Map()
	keys := make([]string, 0, len(props))
	for k := range props {
		if k != "type" && k != "name" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	fmt.Fprintln(e.stdout, "\nProperties:")
	w = tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s\t%s\n", k, props[k])
	}
	return w.Flush()
}

func runTemplates(_ context.Context, e *env, args []string) error {
	if len(args) != 0 {
		return usageError("templates takes no arguments")
	}
	for _, name := range e.app.store.Catalog().Names() {
		fmt.Fprintln(e.stdout, name)
	}
	fmt.Fprintln(e.stdout, "\nA type starting with . or / is read as a template file.")
	return nil
}
