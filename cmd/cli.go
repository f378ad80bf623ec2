// Package cmd is the command line front end: flag parsing, wiring and the
// run, tui and scan commands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fmradio/internal/audio"
	"fmradio/internal/config"
	"fmradio/internal/event"
	applog "fmradio/internal/log"
	"fmradio/internal/station"
	"fmradio/internal/tui"
	"fmradio/internal/tuner"
	"fmradio/pkg/build"
)

const shutdownTimeout = 5 * time.Second

type options struct {
	configPath string
	logLevel   string
	driver     string
	freq       string
	record     bool
	favorites  bool
	timeout    time.Duration
}

// Execute parses args and runs the selected command.
func Execute(args []string) error {
	root := newRootCmd(os.Stdout)
	root.SetArgs(args)
	return root.Execute()
}

func newRootCmd(out io.Writer) *cobra.Command {
	buildInfo := build.GetBuildFlags()
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd.Context(), opts)
		},
	}
	rootCmd.SetOut(out)

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Path to a YAML config file (default: fmradio.yaml or config.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Override the log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&opts.driver, "driver", "d", "",
		"Override the tuner driver (sim, rtlsdr)")

	// Run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Power up and play headless until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeadless(cmd.Context(), opts)
		},
	}
	runCmd.Flags().StringVarP(&opts.freq, "freq", "f", "", "Frequency in MHz, e.g. 95.8 (default: last station)")
	runCmd.Flags().BoolVarP(&opts.record, "record", "r", false, "Record while playing and save on exit")
	rootCmd.AddCommand(runCmd)

	// TUI command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "tui",
		Short: "Interactive tuner console (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd.Context(), opts)
		},
	})

	// Scan command
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the band and update the station list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	scanCmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Give up after this long")
	rootCmd.AddCommand(scanCmd)

	// Stations command
	stationsCmd := &cobra.Command{
		Use:   "stations",
		Short: "List the stored stations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			list, err := store.List()
			if err != nil {
				return err
			}
			if opts.favorites {
				list = station.Favorites(list)
			}
			printStations(cmd.OutOrStdout(), list)
			return nil
		},
	}
	stationsCmd.Flags().BoolVar(&opts.favorites, "favorites", false, "Only show favourite stations")
	rootCmd.AddCommand(stationsCmd)

	// List command
	rootCmd.AddCommand(&cobra.Command{
		Use:     "devices",
		Aliases: []string{"list"},
		Short:   "List available audio devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()
			return audio.ListDevices(cmd.OutOrStdout())
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildInfo.String())
		},
	})

	return rootCmd
}

// loadConfig reads the config file and applies the command line overrides.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.driver != "" {
		cfg.Tuner.Driver = opts.driver
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := applog.ParseLevel(cfg.LogLevel)
	applog.SetLevel(level)
	return cfg, nil
}

func startApp(opts *options) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	a, err := newApp(cfg)
	if err != nil {
		return nil, err
	}
	if err := a.start(); err != nil {
		a.shutdown(context.Background())
		return nil, err
	}
	return a, nil
}

func stopApp(a *app) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runHeadless(parent context.Context, opts *options) error {
	freq := tuner.Invalid
	if opts.freq != "" {
		f, err := tuner.ParseFrequency(opts.freq)
		if err != nil {
			return err
		}
		freq = f
	}

	a, err := startApp(opts)
	if err != nil {
		return err
	}
	defer stopApp(a)

	ctx, cancel := signalContext(parent)
	defer cancel()

	if err := a.engine.PowerUp(freq); err != nil {
		return err
	}
	if opts.record {
		if err := a.engine.StartRecording(); err != nil {
			return err
		}
	}
	log.Infof("running; press Ctrl+C to stop")
	<-ctx.Done()

	if opts.record {
		name := "FM_" + time.Now().Format("20060102_150405")
		a.engine.StopRecording()
		a.engine.SaveRecording(name)
		// Close drops anything still queued
		syncCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.engine.Sync(syncCtx); err != nil {
			return fmt.Errorf("save recording: %w", err)
		}
	}
	return nil
}

func runConsole(parent context.Context, opts *options) error {
	a, err := startApp(opts)
	if err != nil {
		return err
	}
	defer stopApp(a)

	// keep log lines from tearing the alt screen
	applog.SetOutput(io.Discard)
	defer applog.SetOutput(os.Stderr)

	list, err := a.store.List()
	if err != nil {
		return err
	}
	return tui.Run(a.engine, a.cfg.Tuner.Band, list)
}

func runScan(parent context.Context, opts *options, out io.Writer) error {
	a, err := startApp(opts)
	if err != nil {
		return err
	}
	defer stopApp(a)

	ctx, cancel := signalContext(parent)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, opts.timeout)
	defer cancelTimeout()

	finished := make(chan event.ScanFinished, 1)
	powered := make(chan bool, 1)
	h := a.engine.Bus().Subscribe(func(ev event.Event) {
		switch ev := ev.(type) {
		case event.PowerUpFinished:
			select {
			case powered <- ev.OK:
			default:
			}
		case event.ScanFinished:
			select {
			case finished <- ev:
			default:
			}
		}
	})
	defer a.engine.Bus().Unsubscribe(h)

	if err := a.engine.PowerUp(tuner.Invalid); err != nil {
		return err
	}
	select {
	case ok := <-powered:
		if !ok {
			return fmt.Errorf("tuner failed to power up")
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := a.engine.Scan(); err != nil {
		return err
	}
	var res event.ScanFinished
	select {
	case res = <-finished:
	case <-ctx.Done():
		a.engine.StopScan()
		select {
		case res = <-finished:
		case <-time.After(shutdownTimeout):
			return ctx.Err()
		}
	}
	switch {
	case res.Cancelled:
		fmt.Fprintln(out, "scan cancelled")
	case !res.OK:
		return fmt.Errorf("scan failed")
	default:
		fmt.Fprintf(out, "found %d station(s)\n", res.Count)
	}

	list, err := a.store.List()
	if err != nil {
		return err
	}
	printStations(out, list)
	return nil
}

func printStations(w io.Writer, list []station.Station) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no stations")
		return
	}
	for _, st := range list {
		fav := " "
		if st.Favorite {
			fav = "*"
		}
		name := st.ProgramService
		if name == "" {
			name = st.Name
		}
		fmt.Fprintf(w, "%s %6s MHz  %s\n", fav, st.Frequency, name)
	}
}
