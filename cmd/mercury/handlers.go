package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/richardbrodie/mercury/internal/config"
	"github.com/richardbrodie/mercury/internal/scheduler"
	"github.com/richardbrodie/mercury/internal/store"
	"github.com/richardbrodie/mercury/internal/syncer"
	"github.com/richardbrodie/mercury/pkg/fetch"
	"github.com/richardbrodie/mercury/pkg/server"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func openStore(cfg *config.Config) (*store.SQLStore, error) {
	st, err := store.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.EnsureAdminUser(context.Background(), cfg.Admin.Password); err != nil {
		st.Close()
		return nil, fmt.Errorf("seed admin user: %w", err)
	}
	return st, nil
}

func buildSyncer(cfg *config.Config, st store.Store) *syncer.Syncer {
	return syncer.New(st, fetch.New(cfg.Sync.ParseFetchTimeout()))
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	sy := buildSyncer(cfg, st)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(st, sy, cfg.Sync.ParseInterval(), cfg.Sync.Workers)

	// Start scheduler in background.
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "scheduler error: %v\n", err)
		}
	}()

	srv := server.New(st, sy, port)
	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nshutting down...")
	}()

	return srv.ListenAndServe()
}

func runSync() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	sy := buildSyncer(cfg, st)
	ctx := context.Background()

	feeds, err := st.ListFeedsWithSubscribers(ctx)
	if err != nil {
		return fmt.Errorf("list feeds: %w", err)
	}

	total := 0
	for _, f := range feeds {
		n, err := sy.SyncFeed(ctx, f.FeedID, f.URL, f.Subscribers)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", f.URL, err)
			continue
		}
		fmt.Fprintf(os.Stderr, "  %s: %d new items\n", f.URL, n)
		total += n
	}

	fmt.Fprintf(os.Stderr, "total: %d new items across %d feeds\n", total, len(feeds))
	return nil
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := server.New(st, buildSyncer(cfg, st), port)
	return srv.ListenAndServe()
}

func runSubscribe(username, url string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	user, err := st.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("find user %s: %w", username, err)
	}

	if err := buildSyncer(cfg, st).Subscribe(ctx, user.ID, url); err != nil {
		return fmt.Errorf("subscribe %s to %s: %w", username, url, err)
	}

	fmt.Fprintf(os.Stderr, "subscribed %s to %s\n", username, url)
	return nil
}

func runAddUser(username, password string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	user, err := st.CreateUser(context.Background(), username, store.HashPassword(password))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Fprintf(os.Stderr, "created user %s (id %d)\n", user.Username, user.ID)
	return nil
}
