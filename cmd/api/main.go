package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"github.com/sqltavern/askdb/internal/config"
	"github.com/sqltavern/askdb/internal/handler"
	"github.com/sqltavern/askdb/internal/service/ask"
	"github.com/sqltavern/askdb/internal/service/gateway"
	chatstore "github.com/sqltavern/askdb/internal/store/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.Data.Root, 0o755); err != nil {
		log.Fatalf("failed to create data root %s: %v", cfg.Data.Root, err)
	}

	db, err := badger.Open(badger.DefaultOptions(cfg.Store.Path).WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Fatalf("failed to open chat store at %s: %v", cfg.Store.Path, err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("warning: failed to close chat store: %v", err)
		}
	}()

	// Initialize the SQL gateway. Missing credentials keep the process alive:
	// asks then answer with the missing-key notice instead of failing.
	var gw gateway.Gateway
	if cfg.AI.Enabled() {
		agent, err := gateway.NewSQLAgent(ctx, cfg.AI, cfg.Data.RowLimit)
		if err != nil {
			log.Printf("warning: failed to initialize SQL gateway: %v", err)
			log.Println("continuing without question answering - check the Ark model environment variables")
		} else {
			gw = agent
			log.Println("SQL gateway initialized successfully")
		}
	} else {
		log.Println("Ark credentials not configured, asks will return the missing-key notice")
	}

	askSvc := ask.NewService(chatstore.NewBadgerStore(db), gw, ask.Options{
		DataRoot:      cfg.Data.Root,
		DefaultSource: cfg.Data.DefaultSource,
		Timeout:       cfg.Data.AskTimeout,
	})

	router := handler.NewRouter(askSvc, cfg.Data.Root)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("askdb backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
