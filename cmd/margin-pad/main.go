// Package main provides margin-pad, a terminal scratch pad for margin.
// Scratch buffers are autosaved into the margin root and snapshotted into
// its history; the margin CLI powers search, run-block and Slack capture.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/margin/pkg/cli"
	"github.com/entrhq/margin/pkg/commands"
	"github.com/entrhq/margin/pkg/config"
	"github.com/entrhq/margin/pkg/llm"
	"github.com/entrhq/margin/pkg/llm/openai"
	"github.com/entrhq/margin/pkg/logging"
	"github.com/entrhq/margin/pkg/metrics"
	"github.com/entrhq/margin/pkg/pad"
	"github.com/entrhq/margin/pkg/persistence"
	"github.com/entrhq/margin/pkg/process"
	"github.com/entrhq/margin/pkg/security/workspace"
	"github.com/entrhq/margin/pkg/storage"
	"github.com/entrhq/margin/pkg/tasks"
	"github.com/entrhq/margin/pkg/trash"
)

const version = "0.1.0"

// Config holds the command line configuration.
type Config struct {
	SettingsPath string
	Root         string
	MetricsAddr  string
	ShowVersion  bool
	Files        []string
}

func main() {
	cfg := parseFlags()

	if cfg.ShowVersion {
		fmt.Printf("margin-pad v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		cancel()
		log.Fatalf("Application error: %v", err)
	}
	cancel()
}

// parseFlags parses command line flags.
func parseFlags() *Config {
	cfg := &Config{}

	defaultSettings, err := config.DefaultSettingsPath()
	if err != nil {
		defaultSettings = ""
	}

	flag.StringVar(&cfg.SettingsPath, "settings", defaultSettings, "Path to the margin settings file (YAML)")
	flag.StringVar(&cfg.Root, "root", "", "Margin root directory (overrides margin_root)")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "margin-pad - a terminal scratch pad for margin\n\n")
		fmt.Fprintf(os.Stderr, "Usage: margin-pad [options] [file ...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  margin-pad                          # New scratch buffer in the default root\n")
		fmt.Fprintf(os.Stderr, "  margin-pad -root ~/notes todo.md\n")
		fmt.Fprintf(os.Stderr, "  margin-pad -metrics-addr 127.0.0.1:9464\n")
	}

	flag.Parse()
	cfg.Files = flag.Args()
	return cfg
}

// run wires the engine together and blocks until the pad exits.
func run(ctx context.Context, cfg *Config) error {
	settings := &config.Settings{}
	if cfg.SettingsPath != "" {
		loaded, err := config.LoadSettings(cfg.SettingsPath)
		if err != nil {
			return err
		}
		settings = loaded
	}
	if cfg.Root != "" {
		settings.Root = cfg.Root
	}

	root, err := settings.ResolveRoot()
	if err != nil {
		return err
	}
	if err := storage.EnsureLayout(root); err != nil {
		return err
	}

	logger, logErr := logging.NewLogger(storage.LogsDir(root), "margin-pad")
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", logErr)
	}
	defer logger.Close()
	logger.Infof("Starting margin-pad v%s, root=%s", version, root)

	store := config.NewStore(root, logger.With("config"))
	store.SetAutoReplaceOverride(settings.AutoReplaceScratchTabWithFile)

	guard, err := workspace.NewGuard(root)
	if err != nil {
		return fmt.Errorf("failed to create workspace guard: %w", err)
	}
	if err := guard.AddProtected(workspace.DefaultProtectedPatterns...); err != nil {
		return err
	}
	logger.Debugf("Protected paths: %v", guard.Protected())

	recorder := metrics.New()
	if cfg.MetricsAddr != "" {
		stopMetrics := serveMetrics(cfg.MetricsAddr, recorder, logger.With("metrics"))
		defer stopMetrics()
	}

	runner := process.NewRunner(logger.With("process"))
	marginCLI := cli.New(cli.Options{
		Root:    root,
		Path:    settings.CLIPath,
		Timeout: settings.CLITimeout(),
		Runner:  runner,
		Metrics: recorder,
		Logger:  logger.With("cli"),
	})

	pool := tasks.NewPool(ctx, tasks.DefaultLimit, logger.With("tasks"))
	mailbox := tasks.NewMailbox(tasks.DefaultMailboxSize)
	defer mailbox.Close()

	ui := pad.New(mailbox, logger.With("pad"))

	scheduler := persistence.New(root, ui.Host(), store,
		persistence.WithLogger(logger.With("persistence")),
		persistence.WithMetrics(recorder),
		persistence.WithDispatcher(mailbox),
	)

	cmds := commands.New(commands.Options{
		Root:          root,
		Editor:        ui.Editor(),
		Guard:         guard,
		CLI:           marginCLI,
		Trash:         trash.Default(runner, logger.With("trash")),
		LLM:           newLLMClient(settings, runner, logger),
		LLMLimits:     llm.Limits{MaxChars: settings.MaxContextChars(), MaxTokens: settings.LLMMaxContextTokens},
		Configs:       store,
		Scheduler:     scheduler,
		Pool:          pool,
		UI:            mailbox,
		Logger:        logger.With("commands"),
		SlackTokenEnv: settings.SlackToken(),
	})
	ui.Attach(cmds, scheduler)

	for _, file := range cfg.Files {
		if err := ui.Open(file); err != nil {
			logger.Warnf("Skipping %s: %v", file, err)
		}
	}

	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	runErr := ui.Run(ctx)

	pool.Close()
	waitCtx, cancelWait := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelWait()
	if err := pool.Wait(waitCtx); err != nil {
		logger.Warnf("Background tasks still running at exit: %v", pool.Running())
	}

	return runErr
}

// newLLMClient picks the Ask LLM backend: the configured client program,
// else an OpenAI-compatible endpoint when an API key is present. It returns
// nil when neither is configured.
func newLLMClient(settings *config.Settings, runner *process.Runner, logger *logging.Logger) llm.Client {
	if settings.LLMClientPath != "" {
		return &llm.ProcessClient{
			Path:    settings.LLMClientPath,
			Args:    settings.LLMClientArgs,
			Timeout: settings.LLMTimeout(),
			Runner:  runner,
		}
	}

	apiKey := os.Getenv(settings.APIKeyEnv())
	if apiKey == "" {
		return nil
	}
	provider, err := openai.NewProvider(apiKey,
		openai.WithModel(settings.LLMModel),
		openai.WithBaseURL(settings.LLMBaseURL),
		openai.WithHTTPClient(&http.Client{Timeout: settings.LLMTimeout()}),
	)
	if err != nil {
		logger.Warnf("Ask LLM disabled: %v", err)
		return nil
	}
	logger.Infof("Ask LLM using %s at %s", provider.Model(), provider.BaseURL())
	return provider
}

// serveMetrics exposes the recorder on addr and returns a shutdown func.
func serveMetrics(addr string, recorder *metrics.Recorder, logger *logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics server failed: %v", err)
		}
	}()
	logger.Infof("Serving metrics on http://%s/metrics", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
