// Command atari-inject runs the Injection & Session-Control Engine: a
// daemon that supervises up to four PTY-backed Claude Code sessions,
// queues text to type into them, and reacts to their output (idle/prompt
// detection, auto-continue, keyword interrupts, usage-limit sync) without
// a human at the keyboard.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/npratt/atari/internal/config"
	"github.com/npratt/atari/internal/daemon"
	"github.com/npratt/atari/internal/engine"
	"github.com/npratt/atari/internal/ptytransport"
	"github.com/npratt/atari/internal/shutdown"
	"github.com/npratt/atari/internal/statestore"
	"github.com/npratt/atari/internal/tui"
)

var version = "dev"

func getDaemonClient() (*daemon.Client, error) {
	info, err := daemon.FindDaemonInfo("")
	if err != nil {
		return nil, fmt.Errorf("daemon not running: %w", err)
	}
	return daemon.NewClient(info.SocketPath), nil
}

// openStore constructs the configured statestore.Store backend.
func openStore(cfg *config.Config) (statestore.Store, error) {
	switch cfg.Store.Backend {
	case "jsonfile":
		return statestore.NewJSONFileStore(cfg.Store.Path)
	case "sqlite", "":
		return statestore.NewSQLiteStore(cfg.Store.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildEngine restores persisted state into a fresh Engine and spawns a
// PTY-backed terminal per cfg.Terminals.Count, wiring transport output
// straight into the engine's single entry point.
func buildEngine(ctx context.Context, cfg *config.Config, store statestore.Store, logger *slog.Logger) (*engine.Engine, *ptytransport.CreackTransport, error) {
	transport := ptytransport.NewCreackTransport()

	eng := engine.New(transport, engine.Config{
		StabilityThreshold:  cfg.Stability.Threshold,
		AutoContinueEnabled: cfg.AutoContinue.Enabled,
	}, engine.WithSlogLogger(logger), engine.WithQueuePersister(store))

	if queued, err := store.LoadQueue(); err == nil {
		messages := make([]engine.Message, len(queued))
		for i, r := range queued {
			messages[i] = statestore.ToMessage(r)
		}
		var history []engine.Message
		if hist, err := store.LoadHistory(); err == nil {
			history = make([]engine.Message, len(hist))
			for i, r := range hist {
				history[i] = statestore.ToMessage(r)
			}
		}
		eng.Queue.Restore(messages, history)
	} else {
		logger.Warn("load queue failed, starting empty", "error", err)
	}

	if rules, err := store.LoadKeywordRules(); err == nil {
		for _, r := range rules {
			if _, err := eng.Keywords.Add(r.Keyword, r.Response, r.Cooldown); err != nil {
				logger.Warn("restore keyword rule failed", "keyword", r.Keyword, "error", err)
			}
		}
	}
	for _, r := range cfg.KeywordRules {
		if _, err := eng.Keywords.Add(r.Keyword, r.Response, r.Cooldown); err != nil {
			logger.Warn("configured keyword rule failed", "keyword", r.Keyword, "error", err)
		}
	}

	count := cfg.Terminals.Count
	if count <= 0 {
		count = 1
	}
	if count > engine.MaxTerminals {
		count = engine.MaxTerminals
	}
	colors := []string{"red", "green", "blue", "yellow"}
	for i := 0; i < count; i++ {
		id := engine.TerminalID(i)
		name := fmt.Sprintf("terminal-%d", i)
		if _, err := eng.OpenTerminal(id, name, colors[i%len(colors)]); err != nil {
			return nil, nil, fmt.Errorf("open terminal %d: %w", i, err)
		}
		err := transport.Spawn(ctx, id, cfg.Terminals.Command, ptytransport.Size{Rows: 40, Cols: 120}, eng.AppendOutput)
		if err != nil {
			return nil, nil, fmt.Errorf("spawn terminal %d: %w", i, err)
		}
	}

	go func() {
		for ev := range transport.Exits() {
			logger.Info("terminal exited", "terminal", int(ev.Terminal), "error", ev.Err)
			eng.CloseTerminal(ev.Terminal)
		}
	}()

	return eng, transport, nil
}

func main() {
	logLevel := &slog.LevelVar{}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	viper.SetEnvPrefix("ATARI_INJECT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "atari-inject",
		Short: "Supervise PTY-backed Claude Code sessions and queue text into them",
		Long: `atari-inject runs a daemon that supervises up to four PTY-backed Claude
Code sessions. It detects each session's idle/running/prompting state,
queues operator-authored messages for typed delivery, auto-responds to
trust and continuation prompts, tracks usage-limit resets, and fires
configured keyword rules — all without a human watching the terminal.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().String(FlagConfig, "", "Config file path (default: .atari-inject/config.yaml)")
	rootCmd.PersistentFlags().String(FlagLogFile, "", "Log file path")
	rootCmd.PersistentFlags().String(FlagStateFile, "", "State file path")
	rootCmd.PersistentFlags().String(FlagSocketPath, "", "Unix socket path for daemon control")
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("atari-inject %s\n", version)
		},
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine, optionally as a background daemon or with a terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetBool(FlagVerbose) {
				logLevel.Set(slog.LevelDebug)
			}

			cfg, err := config.LoadConfig(viper.GetViper())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyRunFlagOverrides(cmd, cfg)

			projectRoot := daemon.FindProjectRoot("")
			cfg.Paths, err = daemon.ResolvePaths(cfg.Paths, projectRoot)
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(cfg.Paths.Socket), 0755); err != nil {
				return fmt.Errorf("create state directory: %w", err)
			}

			daemonMode := viper.GetBool(FlagDaemon)
			tuiEnabled := viper.GetBool(FlagTUI)
			if !cmd.Flags().Changed(FlagTUI) && !daemonMode {
				tuiEnabled = term.IsTerminal(int(os.Stdout.Fd()))
			}
			if tuiEnabled && daemonMode {
				return fmt.Errorf("--tui and --daemon flags are incompatible")
			}

			if daemonMode {
				client := daemon.NewClient(cfg.Paths.Socket)
				if client.IsRunning() {
					return fmt.Errorf("daemon already running (socket: %s)", cfg.Paths.Socket)
				}
				shouldExit, _, err := daemon.Daemonize(cfg)
				if err != nil {
					return fmt.Errorf("daemonize: %w", err)
				}
				if shouldExit {
					return nil
				}
			}

			ctx := cmd.Context()

			store, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer func() { _ = store.Close() }()

			runLogger := logger
			var tuiLog *TUILoggerResult
			if tuiEnabled {
				tuiLog, err = SetupTUILogger(cfg.Paths.Log, logLevel, cfg.LogRotation)
				if err != nil {
					return fmt.Errorf("setup tui logger: %w", err)
				}
				defer func() { _ = tuiLog.Close() }()
				runLogger = tuiLog.Logger
				slog.SetDefault(runLogger)
			}

			eng, _, err := buildEngine(ctx, cfg, store, runLogger)
			if err != nil {
				return fmt.Errorf("build engine: %w", err)
			}
			defer eng.Close()

			dmn := daemon.New(cfg, eng, runLogger)

			daemonInfo := &daemon.DaemonInfo{
				SocketPath: cfg.Paths.Socket,
				PIDPath:    cfg.Paths.PID,
				LogPath:    cfg.Paths.Log,
				StartTime:  time.Now(),
				PID:        os.Getpid(),
			}
			if err := daemon.WriteDaemonInfo(daemon.DaemonInfoPath(projectRoot), daemonInfo); err != nil {
				runLogger.Warn("failed to write daemon info", "error", err)
			}
			defer func() { _ = daemon.RemoveDaemonInfo(daemon.DaemonInfoPath(projectRoot)) }()

			if tuiEnabled {
				daemonCtx, daemonCancel := context.WithCancel(ctx)
				daemonDone := make(chan struct{})
				go func() {
					defer close(daemonDone)
					if err := dmn.Start(daemonCtx); err != nil {
						runLogger.Error("daemon server error", "error", err)
					}
				}()

				provider := newEngineProvider(eng)
				app := tui.New(provider,
					tui.WithOnPause(eng.Pause),
					tui.WithOnResume(eng.Resume),
					tui.WithOnCancel(func(t int) { eng.CancelInjection(engine.TerminalID(t)) }),
				)
				tuiErr := app.Run()

				daemonCancel()
				<-daemonDone
				return tuiErr
			}

			return shutdown.RunWithGracefulShutdown(
				ctx,
				runLogger,
				30*time.Second,
				func(runCtx context.Context) error {
					return dmn.Start(runCtx)
				},
				func(shutdownCtx context.Context) error {
					return dmn.Stop()
				},
			)
		},
	}
	runCmd.Flags().Bool(FlagDaemon, false, "Run as a background daemon")
	runCmd.Flags().Bool(FlagTUI, false, "Enable terminal UI")
	runCmd.Flags().Int(FlagTerminalCount, 0, "Number of terminals to supervise (default: config)")
	runCmd.Flags().StringSlice(FlagTerminalCmd, nil, "Command to spawn per terminal (default: config)")
	runCmd.Flags().Duration(FlagStabilityMS, 0, "Idle-stability threshold before eligible for injection")
	runCmd.Flags().Bool(FlagAutoContinue, true, "Enable the auto-continue responder")
	runCmd.Flags().Bool(FlagGuardEnabled, true, "Enable the dangerous-command guard")
	runCmd.Flags().String(FlagStoreBackend, "", "Persistence backend: sqlite or jsonfile (default: config)")
	runCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show engine status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			status, err := client.Status()
			if err != nil {
				return err
			}
			if viper.GetBool(FlagJSON) {
				data, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal status: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}
			fmt.Printf("Mode: %s\n", status.Mode)
			fmt.Printf("Uptime: %s\n", status.Uptime)
			fmt.Printf("Queue depth: %d\n", status.QueueDepth)
			fmt.Printf("Timer: %s (running=%v)\n", status.Timer.Remaining, status.Timer.Running)
			for _, t := range status.Terminals {
				fmt.Printf("  terminal %d: %s injecting=%v\n", t.ID, t.Verdict, t.Injecting)
			}
			return nil
		},
	}
	statusCmd.Flags().Bool(FlagJSON, false, "Output status as JSON")
	_ = viper.BindPFlag(FlagJSON, statusCmd.Flags().Lookup(FlagJSON))

	pauseCmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause injection",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			if err := client.Pause(); err != nil {
				return err
			}
			fmt.Println("paused")
			return nil
		},
	}

	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume injection",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			if err := client.Resume(); err != nil {
				return err
			}
			fmt.Println("resumed")
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			if err := client.Stop(viper.GetBool(FlagForce)); err != nil {
				return err
			}
			fmt.Println("stopping")
			return nil
		},
	}
	stopCmd.Flags().Bool(FlagForce, false, "Request a forced stop (handled the same as a normal stop)")
	stopCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	enqueueCmd := &cobra.Command{
		Use:   "enqueue <text>",
		Short: "Queue text for typed delivery into a terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			id, err := client.Enqueue(daemon.EnqueueParams{
				Text:      args[0],
				Target:    viper.GetInt(FlagTarget),
				ExecuteAt: viper.GetString(FlagExecuteAt),
			})
			if err != nil {
				return err
			}
			fmt.Printf("enqueued message %d\n", id)
			return nil
		},
	}
	enqueueCmd.Flags().Int(FlagTarget, 0, "Target terminal id")
	enqueueCmd.Flags().String(FlagExecuteAt, "", "RFC3339 time before which the message is not eligible")
	enqueueCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "List or delete queued messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			action := viper.GetString(FlagQueueAction)
			switch action {
			case "list", "":
				items, err := client.Queue(daemon.QueueParams{Action: "list"})
				if err != nil {
					return err
				}
				data, _ := json.MarshalIndent(items, "", "  ")
				fmt.Println(string(data))
				return nil
			case "delete":
				_, err := client.Queue(daemon.QueueParams{Action: "delete", ID: uint64(viper.GetInt64(FlagQueueID))})
				return err
			default:
				return fmt.Errorf("unknown queue action: %s (use list or delete)", action)
			}
		},
	}
	queueCmd.Flags().String(FlagQueueAction, "list", "Action: list, delete")
	queueCmd.Flags().Int64(FlagQueueID, 0, "Message id (for delete)")
	queueCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	timerCmd := &cobra.Command{
		Use:   "timer",
		Short: "Set, start, pause, or stop the shared countdown timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			return client.Timer(daemon.TimerParams{
				Action: viper.GetString(FlagTimerAction),
				Value:  viper.GetString(FlagTimerValue),
			})
		},
	}
	timerCmd.Flags().String(FlagTimerAction, "", "Action: set, start, pause, stop")
	timerCmd.Flags().String(FlagTimerValue, "", "Duration, e.g. 5m30s")
	timerCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	keywordCmd := &cobra.Command{
		Use:   "keyword <keyword>",
		Short: "Add or remove a keyword rule",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if importPath := viper.GetString(FlagKeywordFile); importPath != "" {
				rules, err := config.LoadKeywordRulesTOML(importPath)
				if err != nil {
					return err
				}
				client, err := getDaemonClient()
				if err != nil {
					return err
				}
				for _, r := range rules {
					if err := client.Keyword(daemon.KeywordParams{
						Action:   "add",
						Keyword:  r.Keyword,
						Response: r.Response,
						Cooldown: r.Cooldown.String(),
					}); err != nil {
						return fmt.Errorf("import rule %q: %w", r.Keyword, err)
					}
				}
				fmt.Printf("imported %d keyword rules\n", len(rules))
				return nil
			}

			if len(args) != 1 {
				return fmt.Errorf("keyword argument required (or pass --%s to import)", FlagKeywordFile)
			}
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			action := viper.GetString(FlagKeywordAction)
			if action == "" {
				action = "add"
			}
			if err := client.Keyword(daemon.KeywordParams{
				Action:   action,
				Keyword:  args[0],
				Response: viper.GetString(FlagKeywordResponse),
				Cooldown: viper.GetString(FlagKeywordCooldown),
			}); err != nil {
				return err
			}
			fmt.Printf("keyword rule %s: %s\n", action, args[0])
			return nil
		},
	}
	keywordCmd.Flags().String(FlagKeywordAction, "add", "Action: add, remove")
	keywordCmd.Flags().String(FlagKeywordResponse, "", "Text to type after sending Escape")
	keywordCmd.Flags().String(FlagKeywordCooldown, "", "Minimum time between fires, e.g. 30s")
	keywordCmd.Flags().String(FlagKeywordFile, "", "Import keyword rules from a TOML file instead")
	keywordCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	rootCmd.AddCommand(versionCmd, runCmd, statusCmd, pauseCmd, resumeCmd, stopCmd, enqueueCmd, queueCmd, timerCmd, keywordCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// applyRunFlagOverrides copies explicitly-set CLI flags onto cfg, leaving
// config-file/default values alone otherwise.
func applyRunFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed(FlagLogFile) {
		cfg.Paths.Log = viper.GetString(FlagLogFile)
	}
	if cmd.Flags().Changed(FlagStateFile) {
		cfg.Paths.State = viper.GetString(FlagStateFile)
	}
	if cmd.Flags().Changed(FlagSocketPath) {
		cfg.Paths.Socket = viper.GetString(FlagSocketPath)
	}
	if cmd.Flags().Changed(FlagTerminalCount) {
		cfg.Terminals.Count = viper.GetInt(FlagTerminalCount)
	}
	if cmd.Flags().Changed(FlagTerminalCmd) {
		cfg.Terminals.Command = viper.GetStringSlice(FlagTerminalCmd)
	}
	if cmd.Flags().Changed(FlagStabilityMS) {
		cfg.Stability.Threshold = viper.GetDuration(FlagStabilityMS)
	}
	if cmd.Flags().Changed(FlagAutoContinue) {
		cfg.AutoContinue.Enabled = viper.GetBool(FlagAutoContinue)
	}
	if cmd.Flags().Changed(FlagGuardEnabled) {
		cfg.Guard.Enabled = viper.GetBool(FlagGuardEnabled)
	}
	if cmd.Flags().Changed(FlagStoreBackend) {
		cfg.Store.Backend = viper.GetString(FlagStoreBackend)
	}
}
