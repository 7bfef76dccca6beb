package main

import (
	"context"
	"log"
	"os"

	"github.com/example/chat-relay/config"
	"github.com/example/chat-relay/modules/activity"
	"github.com/example/chat-relay/modules/api"
	"github.com/example/chat-relay/modules/broadcast"
	"github.com/example/chat-relay/modules/console"
	"github.com/example/chat-relay/modules/relay"
	"github.com/example/chat-relay/modules/store"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	log.Println("=== Chat Relay - Fiber WebSocket + Mongo ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	st, err := store.Open(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}

	// Create modules
	storeModule := store.NewModule(st, cfg.StoreDriver, logger.WithModule("store"))
	broadcastModule := broadcast.NewModule()
	relayModule := relay.NewModule(st, broadcastModule.GetHub(), logger.WithModule("relay"), relay.Options{
		RoomID:        cfg.RoomID,
		ValidateUsers: cfg.ValidateUsers,
	})
	activityModule := activity.NewModule(logger.WithModule("activity"))
	apiModule := api.NewModule(config.ListenAddr)

	// The hub and relay are not exposed via ServiceContainer, so the API
	// module receives them directly.
	apiModule.SetHub(broadcastModule.GetHub())
	apiModule.SetRelay(relayModule.Relay())
	apiModule.SetActivity(activityModule)
	apiModule.SetRateLimit(cfg.RateLimit, cfg.RateLimitBurst)

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - store: persistence (health + close on stop)
	// - broadcast: WebSocket hub
	// - relay: join/message protocol (ServiceProviderModule + EventEmitterModule)
	// - activity: event consumer
	// - api: Fiber HTTP/WebSocket server, depends on relay
	// - console: stdin voice of the server
	app.Register(storeModule)
	app.Register(broadcastModule)
	app.Register(relayModule)
	app.Register(activityModule)
	app.Register(apiModule)
	if cfg.ConsoleEnabled {
		app.Register(console.NewModule(os.Stdin, relayModule.Relay(), logger.WithModule("console")))
	}

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("Store: %s", cfg.StoreDriver)
	log.Printf("Room:  %d", cfg.RoomID)
	if cfg.ValidateUsers {
		log.Println("Claimed user ids are validated against the store")
	}
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost%s/ws, also /socket):", config.ListenAddr)
	log.Println(`  {"type":"userJoined","payload":null}          - join as a new user`)
	log.Println(`  {"type":"userJoined","payload":"<id>"}        - join as an existing user`)
	log.Println(`  {"type":"message","payload":{"text":"hi",...}} - send a message`)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost%s):", config.ListenAddr)
	log.Println("  GET    /health                 - Health check")
	log.Println("  GET    /api/v1/messages        - Room history, newest first")
	log.Println("  GET    /api/v1/activity        - Relay activity")
	log.Println("")
	if cfg.ConsoleEnabled {
		log.Println("Type a line on stdin to post it as the server.")
	}
	log.Println("Press Ctrl+C to shutdown gracefully")
}
