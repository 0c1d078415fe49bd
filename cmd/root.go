package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"queuelab/internal/banner"
	"queuelab/internal/cli"
	"queuelab/internal/logging"
	"queuelab/internal/metrics"
	"queuelab/internal/report"
	"queuelab/internal/runner"
	"queuelab/internal/server"
	"queuelab/internal/storage"
	"queuelab/internal/tui/app"
	tuiconfig "queuelab/internal/tui/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "queuelab",
	Short: "queuelab - multi-stage queueing system simulator",
	Long: `
queuelab simulates a pipeline of bounded FIFO buffers, each served by a pool
of parallel channels, fed by a paced request generator.

It runs headless by default, printing a progress line and the final report.
Pass --tui for the interactive dashboard.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimulation(cmd.Context(), viper.GetViper())
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.queuelab.yaml)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.Bool("log-dev", false, "Human-readable console logs")
	pf.String("history", "", "Run history database (bbolt); empty disables history")

	defaults := runner.DefaultConfig()
	f := rootCmd.Flags()
	f.IntP("stages", "s", len(defaults.Stages), "Number of pipeline stages")
	f.IntSliceP("channels", "c", []int{defaults.Stages[0].Channels}, "Channels per stage (one value for all stages, or one per stage)")
	f.IntSliceP("capacity", "b", []int{defaults.Stages[0].Capacity}, "Buffer capacity per stage (one value for all stages, or one per stage)")
	f.DurationP("interval", "i", defaults.GenerationInterval, "Request generation interval")
	f.Duration("min-processing", defaults.MinProcessing, "Minimum service time")
	f.Duration("max-processing", defaults.MaxProcessing, "Maximum service time")
	f.DurationP("duration", "d", defaults.Duration, "Simulation duration")
	f.Duration("poll-interval", defaults.PollInterval, "Bound on every blocking wait")
	f.Int64("seed", 0, "Random seed (0 picks a time-based seed)")
	f.String("metrics-addr", "", "Serve /metrics, /status and /healthz on this address")
	f.StringP("out", "o", "", "Output filename prefix for CSV/JSON reports")
	f.Bool("tui", false, "Interactive terminal dashboard")

	_ = viper.BindPFlags(pf)
	_ = viper.BindPFlags(f)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".queuelab")
		}
	}
	viper.SetEnvPrefix("QUEUELAB")
	viper.SetEnvKeyReplacer(stringsReplacer())
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
		}
	}
}

func stringsReplacer() *strings.Replacer {
	return strings.NewReplacer("-", "_")
}

func runSimulation(ctx context.Context, v *viper.Viper) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	useTUI := v.GetBool("tui")
	if useTUI {
		edited, ok, err := editConfig(cfg)
		if err != nil || !ok {
			return err
		}
		cfg = edited
	}

	logger := logging.NewNop()
	if !useTUI {
		logger, err = logging.New(v.GetString("log-level"), v.GetBool("log-dev"))
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
	}
	defer logger.Sync()

	updates := make(runner.ProgressChan, 16)
	opts := []runner.Option{
		runner.WithLogger(logger.Logger),
		runner.WithUpdates(updates, 250*time.Millisecond),
	}

	addr := v.GetString("metrics-addr")
	var m *metrics.Metrics
	if addr != "" {
		m = metrics.New()
		opts = append(opts, runner.WithObserver(m), runner.WithDepthTracker(m))
	}

	r, err := runner.New(cfg, opts...)
	if err != nil {
		return err
	}

	if m != nil {
		srv := server.New(m.Handler(), r, logger.Logger)
		if err := srv.Start(addr); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Metrics server shutdown", zap.Error(err))
			}
		}()
	}

	var store *storage.Store
	if path := v.GetString("history"); path != "" {
		store, err = storage.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	out := v.GetString("out")
	if useTUI {
		return runTUI(ctx, r, updates, store, out)
	}

	snap, err := cli.Start(ctx, r, updates, os.Stdout, out)
	if err != nil {
		return err
	}
	if store != nil {
		item, err := store.Record(cfg, r.Generated(), snap)
		if err != nil {
			return err
		}
		logger.Info("Run saved", zap.String("id", item.ID))
	}
	return nil
}

// editConfig shows the topology form. ok is false if the user quit.
func editConfig(cfg runner.Config) (runner.Config, bool, error) {
	final, err := tea.NewProgram(tuiconfig.NewModel(cfg)).Run()
	if err != nil {
		return cfg, false, fmt.Errorf("config form: %w", err)
	}
	form, ok := final.(tuiconfig.Model)
	if !ok || !form.Submitted {
		return cfg, false, nil
	}
	edited, err := form.GetConfig()
	return edited, err == nil, err
}

func runTUI(ctx context.Context, r *runner.Runner, updates runner.ProgressChan, store *storage.Store, out string) error {
	m := app.NewModel(ctx, r, updates, store, out)
	p := tea.NewProgram(m, tea.WithAltScreen())

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}

	fm, ok := final.(app.Model)
	if !ok || !fm.Finished {
		return nil
	}
	if fm.Err != nil {
		return fm.Err
	}
	return report.Render(os.Stdout, fm.Snapshot)
}
