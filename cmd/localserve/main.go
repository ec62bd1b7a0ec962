// Package main provides the entry point for the localserve application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/lukaszraczylo/localserve/internal/config"
	"github.com/lukaszraczylo/localserve/internal/version"
)

const (
	githubOwner = "lukaszraczylo"
	githubRepo  = "localserve"
)

// errUsage marks errors whose message is followed by the command's usage.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the flags shared by every command.
type options struct {
	configPath string
	verbose    bool
}

type command struct {
	name    string
	args    string
	summary string
	// mutates commands take the process lock and write audit entries.
	mutates bool
	// standalone commands run without building the app.
	standalone bool
	run        func(ctx context.Context, env *env, args []string) error
}

// env is what a command runs against.
type env struct {
	opts   options
	stdout io.Writer
	stderr io.Writer
	app    *app
}

func commands() []command {
	return []command{
		{name: "list", summary: "List sites, their hostnames and status", run: runList},
		{name: "create", args: "<type> <name> <hostname>", summary: "Write a site config from a template and map its hostname", mutates: true, run: runCreate},
		{name: "enable", args: "<site>", summary: "Map a site's hostname in the hosts file", mutates: true, run: runEnable},
		{name: "disable", args: "<site>", summary: "Remove a site's hostname from the hosts file", mutates: true, run: runDisable},
		{name: "destroy", args: "<site>", summary: "Disable a site and delete its config", mutates: true, run: runDestroy},
		{name: "info", args: "<site>", summary: "Show a site's status and properties", run: runInfo},
		{name: "templates", summary: "List the built-in site templates", run: runTemplates},
		{name: "hosts", args: "list|add|rm", summary: "Inspect or edit hosts file entries", run: runHosts},
		{name: "backups", summary: "List hosts file backups", run: runBackups},
		{name: "restore", args: "<backup>", summary: "Restore the hosts file from a backup", mutates: true, run: runRestore},
		{name: "watch", summary: "Print the site list whenever the hosts file or site configs change", run: runWatch},
		{name: "doctor", summary: "Check nginx, the config root and the hosts file", run: runDoctor},
		{name: "init", summary: "Write the default config file", standalone: true, run: runInit},
		{name: "version", summary: "Show version and check for updates", standalone: true, run: runVersion},
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options

	flagSet := pflag.NewFlagSet("localserve", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVarP(&opts.configPath, "config", "c", config.DefaultConfigPath(), "path to config file")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")
	showVersion := flagSet.Bool("version", false, "show version")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(stdout, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printUsage(stdout, flagSet)
		return nil
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.String())
		return nil
	}

	e := &env{opts: opts, stdout: stdout, stderr: stderr}

	rest := flagSet.Args()
	if len(rest) == 0 {
		return runTUI(ctx, e)
	}
	if rest[0] == "help" {
		printUsage(stdout, flagSet)
		return nil
	}

	cmd, ok := findCommand(rest[0])
	if !ok {
		printUsage(stderr, flagSet)
		return fmt.Errorf("unknown command: %s", rest[0])
	}

	if !cmd.standalone {
		a, err := newApp(ctx, opts, stderr)
		if err != nil {
			return err
		}
		defer a.Close()
		e.app = a

		if cmd.mutates {
			release, err := a.lock(ctx)
			if err != nil {
				return err
			}
			defer release()
		}
	}

	err := cmd.run(ctx, e, rest[1:])
	if errors.Is(err, errUsage) {
		fmt.Fprintf(stderr, "Usage: localserve %s %s\n", cmd.name, cmd.args)
	}
	return err
}

func findCommand(name string) (command, bool) {
	for _, cmd := range commands() {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, "localserve - local nginx sites and their hosts entries\n\n")
	fmt.Fprintf(w, "Usage:\n")
	fmt.Fprintf(w, "  localserve [flags]                  Launch TUI\n")
	fmt.Fprintf(w, "  localserve [flags] <command> [args]\n\n")
	fmt.Fprintf(w, "Commands:\n")

	cmds := commands()
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].name < cmds[j].name })
	for _, cmd := range cmds {
		usage := strings.TrimSpace(cmd.name + " " + cmd.args)
		fmt.Fprintf(w, "  %-34s  %s\n", usage, cmd.summary)
	}

	fmt.Fprintf(w, "\nFlags:\n")
	fmt.Fprint(w, flagSet.FlagUsages())
}

// newFlags returns a flag set for a subcommand.
func newFlags(e *env, name string) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("localserve "+name, pflag.ContinueOnError)
	flagSet.SetOutput(e.stderr)
	return flagSet
}

// usageError reports wrong arguments.
func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}
