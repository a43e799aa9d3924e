package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/kriansa/usb-automount/internal/automount"
	"github.com/kriansa/usb-automount/internal/config"
	"github.com/kriansa/usb-automount/internal/kernlog"
	"github.com/kriansa/usb-automount/internal/log"
	"github.com/kriansa/usb-automount/internal/maybe"
	"github.com/kriansa/usb-automount/internal/procmounts"
	"github.com/kriansa/usb-automount/internal/state"
	"github.com/kriansa/usb-automount/internal/udisks"
	"github.com/kriansa/usb-automount/internal/validation"
	"github.com/kriansa/usb-automount/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newCommand(os.Stdout).Run(ctx, os.Args)
	stop()
	os.Exit(exitCode(os.Stderr, err))
}

// exitCode reports err on w and returns the process exit status for it
func exitCode(w io.Writer, err error) int {
	if err == nil {
		return 0
	}

	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		if msg := exitErr.Error(); msg != "" {
			fmt.Fprintln(w, msg)
		}
		return exitErr.ExitCode()
	}

	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  config.AppName,
		Usage: "Mount a freshly inserted USB drive and eject it again",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "mount",
				Aliases: []string{"m"},
				Usage:   "Mount an auto-detected usb",
			},
			&cli.BoolFlag{
				Name:    "autoeject",
				Aliases: []string{"e"},
				Usage:   "Eject the last mounted usb",
			},
			&cli.StringFlag{
				Name:    "eject",
				Aliases: []string{"E"},
				Usage:   "Eject the usb at the given device `PATH`",
			},
			&cli.BoolFlag{
				Name:    "status",
				Aliases: []string{"S"},
				Usage:   "Show the last mounted usb and where it is mounted",
			},
			&cli.IntFlag{
				Name:    "timeout",
				Aliases: []string{"T"},
				Usage:   "How long (seconds, max) to search for a usb",
				Value:   config.DefaultTimeout,
			},
			&cli.IntFlag{
				Name:    "timerange",
				Aliases: []string{"t"},
				Usage:   "How far back (seconds) from now kernel messages are considered",
				Value:   config.DefaultTimeRange,
			},
			&cli.StringFlag{
				Name:    "backend",
				Aliases: []string{"b"},
				Usage:   "udisks backend: cli or dbus",
			},
			&cli.StringFlag{
				Name:    "state-file",
				Aliases: []string{"s"},
				Usage:   "File remembering the last mounted device",
			},
			&cli.StringFlag{
				Name:    "kernel-log",
				Aliases: []string{"k"},
				Usage:   "Kernel log file to scan",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Configuration file path",
				Value:   config.DefaultConfigPath,
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:    "version",
				Aliases: []string{"V"},
				Usage:   "Print version information",
			},
		},
		Writer:         out,
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd, out)
		},
	}
}

func run(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	// Handle version flag
	if cmd.Bool("version") {
		fmt.Fprintln(out, version.String())
		return nil
	}

	// Setup logging
	log.Setup(cmd.Bool("verbose"))

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store := state.NewStore(afero.NewOsFs(), cfg.StateFile)

	switch {
	case cmd.Bool("mount"):
		return withAutomounter(cfg, store, func(am *automount.Automounter) error {
			return mount(ctx, am, cfg, out)
		})
	case cmd.Bool("autoeject"):
		return withAutomounter(cfg, store, func(am *automount.Automounter) error {
			return autoEject(ctx, am, out)
		})
	case cmd.IsSet("eject"):
		device := cmd.String("eject")
		if err := validation.ValidateDevicePath(device); err != nil {
			return fmt.Errorf("invalid device: %w", err)
		}
		return withAutomounter(cfg, store, func(am *automount.Automounter) error {
			return eject(ctx, am, device, out)
		})
	case cmd.Bool("status"):
		return status(store, out)
	default:
		return cli.ShowAppHelp(cmd)
	}
}

// loadConfig reads the config file and applies command line overrides
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// Merge CLI flags (CLI takes precedence)
	overrides := config.Overrides{
		Backend:   cmd.String("backend"),
		StateFile: cmd.String("state-file"),
		KernelLog: cmd.String("kernel-log"),
	}
	if cmd.IsSet("timeout") {
		timeout := int(cmd.Int("timeout"))
		overrides.Timeout = &timeout
	}
	if cmd.IsSet("timerange") {
		timeRange := int(cmd.Int("timerange"))
		overrides.TimeRange = &timeRange
	}
	cfg.Merge(overrides)

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log.Debug("configuration loaded",
		"timeout", cfg.Timeout,
		"timerange", cfg.TimeRange,
		"backend", cfg.Backend,
		"state_file", cfg.StateFile,
		"kernel_log", cfg.KernelLog,
	)
	return cfg, nil
}

// withAutomounter builds the udisks backend and the automounter around it
// and releases the backend afterwards
func withAutomounter(cfg *config.Config, store *state.Store, fn func(*automount.Automounter) error) error {
	mgr, err := udisks.NewManager(cfg.Backend)
	if err != nil {
		return fmt.Errorf("create udisks manager: %w", err)
	}
	if c, ok := mgr.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				log.Warn("failed to close udisks connection", "error", err)
			}
		}()
	}

	source := kernlog.NewFileSource(afero.NewOsFs(), cfg.KernelLog, cfg.TailLines)
	return fn(automount.New(source, mgr, store))
}

func mount(ctx context.Context, am *automount.Automounter, cfg *config.Config, out io.Writer) error {
	return maybe.Either(am.Automount(ctx, cfg.Timeout, cfg.TimeRange),
		func(rec automount.MountRecord) error {
			fmt.Fprintln(out, rec.Device)
			fmt.Fprintln(out, rec.MountPoint)
			return nil
		},
		func() error { return cli.Exit("No usb found!", 1) },
	)
}

func autoEject(ctx context.Context, am *automount.Automounter, out io.Writer) error {
	ejected := maybe.Bind(am.UnmountLast(ctx), func(code int) maybe.Option[int] {
		return maybe.FromOK(code, code == 0)
	})

	return maybe.Either(ejected,
		func(int) error {
			fmt.Fprintln(out, "Ejected.")
			return nil
		},
		func() error { return cli.Exit("Failed to eject.", 1) },
	)
}

func eject(ctx context.Context, am *automount.Automounter, device string, out io.Writer) error {
	if code := am.Eject(ctx, device); code != 0 {
		return cli.Exit("Failed to eject.", code)
	}
	fmt.Fprintln(out, "Ejected.")
	return nil
}

func status(store *state.Store, out io.Writer) error {
	device := store.ReadLastMounted()
	if device.IsEmpty() {
		return cli.Exit("No usb recorded.", 1)
	}

	mounts, err := procmounts.Parse()
	if err != nil {
		return fmt.Errorf("read mount table: %w", err)
	}

	fmt.Fprintln(out, device.Get())
	fmt.Fprintln(out, procmounts.MountPointOf(mounts, device.Get()).GetOrDefault("not mounted"))
	return nil
}
