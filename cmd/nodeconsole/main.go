package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"nodeconsole/config"
	"nodeconsole/engine"
	"nodeconsole/store"
	"nodeconsole/www"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	configPath  string
	envPath     string
	debug       bool
	port        int
	writeConfig bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "nodeconsole.yaml", "path to config file")
	flag.StringVar(&opts.envPath, "env", ".env", "path to an optional .env file")
	flag.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flag.IntVar(&opts.port, "port", 0, "HTTP port (overrides config)")
	flag.BoolVar(&opts.writeConfig, "write-config", false, "write the effective config to -config and exit")
	flag.Parse()

	if opts.debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
	if err := run(opts); err != nil {
		log.Fatalf("nodeconsole: %v", err)
	}
}

func loadConfig(opts options) (*config.Config, error) {
	if err := config.LoadDotEnv(opts.envPath); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.port > 0 {
		cfg.Web.Port = opts.port
	}
	return cfg, nil
}

func run(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if opts.writeConfig {
		if err := cfg.Save(opts.configPath); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		log.Printf("config written to %s", opts.configPath)
		return nil
	}

	db, err := store.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: opts.configPath,
		DB:         db,
		LogFunc:    log.Printf,
		Debug:      opts.debug,
	})
	eng.Start()
	defer eng.Stop()

	router, stopWeb := www.NewRouter(eng)
	defer stopWeb()

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	server := &http.Server{Addr: addr, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("nodeconsole listening on %s (agent %s, hub %s)", addr, cfg.LocalAgent.URL, cfg.Hub.URL)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("nodeconsole: shutting down")
	// SSE streams never finish on their own; end them before Shutdown waits.
	stopWeb()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown: %v", err)
	}
	return nil
}
