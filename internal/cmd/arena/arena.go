// Package arena parses arena command flags and starts the game runtime.
package arena

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	entrypoint "github.com/modelarena/arena/internal/platform/cmd"
	arenahttp "github.com/modelarena/arena/internal/services/arena/api/http"
	"github.com/modelarena/arena/internal/services/arena/engine"
	"github.com/modelarena/arena/internal/services/arena/gateway"
	"github.com/modelarena/arena/internal/services/arena/storage/sqlite"
)

// Config holds arena command configuration.
type Config struct {
	Port          int    `env:"ARENA_PORT" envDefault:"8080"`
	Addr          string `env:"ARENA_ADDR"`
	DBPath        string `env:"ARENA_DB_PATH" envDefault:"arena.db"`
	GatewayURL    string `env:"ARENA_GATEWAY_URL"`
	GatewayAPIKey string `env:"ARENA_GATEWAY_API_KEY"`
	// TopicMenu is a comma-separated list of topics offered to masters.
	TopicMenu string `env:"ARENA_TOPIC_MENU"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The arena server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The arena server listen address (overrides -port)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the arena service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceArena, func(ctx context.Context) error {
		return serve(ctx, cfg)
	})
}

func serve(ctx context.Context, cfg Config) error {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close storage: %v", err)
		}
	}()

	var menu []string
	for _, topic := range strings.Split(cfg.TopicMenu, ",") {
		if topic = strings.TrimSpace(topic); topic != "" {
			menu = append(menu, topic)
		}
	}

	eng := engine.New(engine.Options{
		Stores: store.Stores(),
		Gateway: gateway.NewHTTPGateway(gateway.HTTPConfig{
			ResponsesURL: cfg.GatewayURL,
			APIKey:       cfg.GatewayAPIKey,
		}),
		TopicMenu: menu,
	})
	if err := eng.LoadActive(ctx); err != nil {
		return fmt.Errorf("resume active session: %w", err)
	}

	server := arenahttp.NewServer(eng, store.Stores())

	addr := cfg.Addr
	if addr == "" {
		addr = fmt.Sprintf(":%d", cfg.Port)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("arena listening on %s", addr)
		errCh <- server.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- server.Shutdown() }()
	select {
	case err := <-done:
		return err
	case <-shutdownCtx.Done():
		return shutdownCtx.Err()
	}
}
