package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sentinela-dev/sentinela/internal/clip"
	"github.com/sentinela-dev/sentinela/internal/demo"
	"github.com/sentinela-dev/sentinela/internal/engine"
	"github.com/sentinela-dev/sentinela/internal/i18n"
	"github.com/sentinela-dev/sentinela/internal/inference"
	"github.com/sentinela-dev/sentinela/internal/mailer"
	"github.com/sentinela-dev/sentinela/internal/notify"
	"github.com/sentinela-dev/sentinela/internal/summarizer"
	"github.com/sentinela-dev/sentinela/internal/summary"
	"github.com/sentinela-dev/sentinela/internal/watch"
	"github.com/sentinela-dev/sentinela/pkg/config"
	"github.com/sentinela-dev/sentinela/pkg/observability"
)

// Version information (set via ldflags)
var Version = "dev"

// placeholderPrompts are the rotating prompt suggestions shown while a
// session is idle.
var placeholderPrompts = []string{
	"a person at the front door",
	"a package being taken",
	"a dog on the couch",
	"a child near the pool alone",
	"a car parking in the driveway",
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "sentinela",
		Short:         "Sentinela watching session runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", os.Getenv("SENTINELA_CONFIG"), "configuration file (YAML)")

	root.AddCommand(newServeCmd(&configFile))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sentinela v%s\n", Version)
		},
	}
}

func newServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the watching session",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return serve(cfg)
		},
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

func serve(cfg *config.Config) error {
	log.Printf("Starting Sentinela v%s", Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Observability
	observability.InitMetrics()
	healthChecker := observability.InitHealthChecker()
	healthChecker.RegisterCheck(observability.BackendCheck(func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.ServerURL+"/init", nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		return nil
	}))

	// Session core
	reducer := watch.NewReducer(watch.Tuning{
		ConfidenceThreshold: cfg.Detection.ConfidenceThreshold,
		ConsecutiveRequired: cfg.Detection.ConsecutiveRequired,
		ReasonHoldoff:       cfg.Detection.ReasonHoldoff.Std(),
	})
	eng := engine.New(reducer, engine.WithInboxSize(cfg.Runtime.ChannelBufferSize))

	// Collaborators
	mail := mailer.New(cfg.EmailURL)
	cascade := summary.NewCascade(
		summarizer.New(cfg.OpenAIKey, cfg.OpenAIURL, cfg.SummaryModel), eng, time.Now)
	notifier := notify.NewNotifier(mail, eng, time.Now, cfg.Email.PostDetection.Std(), cfg.Email.ClipGrace.Std())
	digest := notify.NewDigest(mail, time.Now)
	reset := engine.NewPhaseReset(eng, cfg.Detection.DetectedHold.Std())
	clips := clip.NewCoordinator(nil, eng, cfg.Capture.ClipRotation.Std(), clip.DefaultPostDetection)
	infer := inference.NewClient(cfg.InferenceURL, eng, cfg.Capture.FPS)
	translations := i18n.NewLoader(cfg.ServerURL, eng)
	catalog := demo.NewClient(cfg.ServerURL, eng)

	healthChecker.RegisterCheck(observability.InferenceCheck(func(context.Context) error {
		if !infer.Connected() {
			return fmt.Errorf("inference websocket not connected")
		}
		return nil
	}))

	reactors := []engine.Reactor{
		engine.NewMetricsReactor(),
		reset,
		cascade,
		notifier,
		digest,
		clips,
		infer,
		translations,
	}
	for _, r := range reactors {
		if err := eng.Register(r); err != nil {
			return fmt.Errorf("register %s: %w", r.Name(), err)
		}
	}
	defer reset.Stop()
	defer clips.Stop()

	obsServer := observability.NewServer(cfg.Runtime.MetricsAddr)

	// Time-based conditions (clip grace, digest windows, placeholder
	// rotation) need re-checks between state changes.
	schedule := cron.New()
	mustSchedule(schedule, "@every 1s", func() {
		st := eng.State()
		notifier.Evaluate(ctx, st)
		digest.Evaluate(ctx, st)
	})
	mustSchedule(schedule, "@every 10s", func() {
		cascade.Evaluate(ctx, eng.State())
	})
	mustSchedule(schedule, "@every 3s", func() {
		if err := eng.Dispatch(watch.PlaceholderRotate{Count: len(placeholderPrompts)}); err != nil {
			log.Printf("serve: placeholder rotate: %v", err)
		}
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(ctx)
	})
	g.Go(func() error {
		return infer.Run(ctx)
	})
	g.Go(func() error {
		log.Printf("Metrics server on %s", cfg.Runtime.MetricsAddr)
		if err := obsServer.Start(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		schedule.Stop()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return obsServer.Shutdown(shutCtx)
	})

	// Startup state from the backing server.
	catalog.Bootstrap(ctx)
	translations.Load(ctx, eng.State().CurrentLanguage)
	if cfg.Email.ToAddress != "" {
		if err := eng.Dispatch(watch.ToEmailAddressChange{Address: cfg.Email.ToAddress}); err != nil {
			log.Printf("serve: set email address: %v", err)
		}
	}
	schedule.Start()

	err := g.Wait()
	if err != nil && err != context.Canceled {
		return err
	}
	log.Println("Sentinela stopped")
	return nil
}

func mustSchedule(c *cron.Cron, spec string, fn func()) {
	if _, err := c.AddFunc(spec, fn); err != nil {
		panic(fmt.Sprintf("bad cron spec %q: %v", spec, err))
	}
}
