package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"agentdesk/internal/adapter/api"
	"agentdesk/internal/adapter/history"
	"agentdesk/internal/adapter/stream"
	tuichat "agentdesk/internal/adapter/tui/chat"
	"agentdesk/internal/domain"
	"agentdesk/internal/infra/config"
	"agentdesk/internal/infra/logger"
	"agentdesk/internal/infra/tracer"
	"agentdesk/internal/usecase/appstate"
	"agentdesk/internal/usecase/chat"
	"agentdesk/internal/usecase/eventbus"
	"agentdesk/internal/usecase/preload"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	headless := flag.String("headless", "", "send one prompt non-interactively and print the reply")
	agentFlag := flag.String("agent", "", "agent id to talk to (overrides saved selection)")
	flag.Parse()

	if err := run(*configPath, *headless, *agentFlag); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, headlessPrompt, agentFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return err
	}
	defer shutdownTracer(context.Background())

	bus := eventbus.New(log)
	defer bus.Close()

	state, err := appstate.New(cfg.Storage.Dir, cfg.StateKey(), bus, log)
	if err != nil {
		return err
	}
	if tok := cfg.Server.Token; tok != "" && state.Token() == "" {
		// Config-supplied token seeds the session without an explicit login.
		if err := state.Login(state.UserID(), tok); err != nil {
			return err
		}
	}
	if agentFlag != "" {
		if err := state.SelectAgent(agentFlag); err != nil {
			return err
		}
	}

	client := api.New(api.Options{
		BaseURL:            cfg.Server.BaseURL,
		Token:              state.Token,
		Timeout:            cfg.API.Timeout,
		RateLimit:          cfg.API.RateLimit,
		RateBurst:          cfg.API.RateBurst,
		BreakerMaxFailures: cfg.API.BreakerMaxFailures,
		BreakerTimeout:     cfg.API.BreakerTimeout,
		Logger:             log,
	})

	agg := chat.NewAggregator(bus, log)

	transport := stream.New(stream.Options{
		URL:         cfg.Server.WSURL,
		Dialer:      &stream.WSDialer{Token: state.Token},
		BackoffBase: cfg.Stream.BackoffBase,
		BackoffMax:  cfg.Stream.BackoffMax,
		MaxAttempts: cfg.Stream.MaxAttempts,
		OnEvent:     agg.OnEvent,
		OnStatus: func(s stream.Status) {
			bus.Publish(ctx, domain.NewEvent(domain.EventStreamStatus,
				map[string]string{"status": string(s)}))
		},
		OnError: func(err error) {
			log.Warn("stream error", "error", err)
		},
		Logger: log,
	})
	defer transport.Close()

	runner := chat.NewRunner(transport, agg, func() (string, string) {
		return state.AgentID(), state.UserID()
	}, log)

	archive, err := history.Open(filepath.Join(cfg.Storage.Dir, "history.db"), log)
	if err != nil {
		return err
	}
	defer archive.Close()
	detach := archive.Attach(bus)
	defer detach()

	if cfg.Preload.Enabled {
		cache := preload.New(cfg.Preload.TTL, bus, log)
		agentID := state.AgentID
		cache.Register("jobs", func(ctx context.Context) (any, error) {
			return client.ListJobs(ctx, agentID())
		})
		cache.Register("inbox", func(ctx context.Context) (any, error) {
			return client.ListInbox(ctx, agentID())
		})
		cache.Register("skills", func(ctx context.Context) (any, error) {
			return client.ListSkills(ctx)
		})
		cache.Register("social", func(ctx context.Context) (any, error) {
			return client.ListContacts(ctx)
		})
		if err := cache.StartSchedule(ctx, cfg.Preload.Schedule); err != nil {
			return err
		}
		defer cache.StopSchedule()
	}

	if headlessPrompt != "" {
		return runHeadless(ctx, runner, agg, bus, headlessPrompt)
	}

	ui := tuichat.NewUI(tuichat.ModelDeps{
		Sender:    runner,
		Agg:       agg,
		AgentName: agentName(state),
		Logger:    log,
	}, bus)
	return ui.Start(ctx)
}

// runHeadless sends one prompt through the identical core path the TUI uses
// and prints the displayed response.
func runHeadless(ctx context.Context, runner *chat.Runner, agg *chat.Aggregator, bus domain.EventBus, prompt string) error {
	finalized := make(chan struct{}, 1)
	unsub := bus.Subscribe(domain.EventRunFinalized, func(context.Context, domain.Event) {
		select {
		case finalized <- struct{}{}:
		default:
		}
	})
	defer unsub()

	if err := runner.Send(ctx, prompt); err != nil {
		return err
	}

	// Finalization is published asynchronously after Run returns.
	select {
	case <-finalized:
	case <-time.After(5 * time.Second):
	case <-ctx.Done():
		return ctx.Err()
	}

	turns := agg.History()
	if len(turns) == 0 {
		return fmt.Errorf("run produced no finalized turn")
	}
	fmt.Println(turns[0].AssistantMessage.Content)
	return nil
}

func agentName(state *appstate.Store) string {
	id := state.AgentID()
	for _, a := range state.KnownAgents() {
		if a.ID == id {
			return a.Name
		}
	}
	return id
}
