package main

import (
	"context"
	"net/http"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/curioapp/curio/internal/api"
	"github.com/curioapp/curio/internal/auth"
	"github.com/curioapp/curio/internal/config"
	"github.com/curioapp/curio/internal/db"
	"github.com/curioapp/curio/internal/logger"
	"github.com/curioapp/curio/internal/scrape"
	"github.com/curioapp/curio/internal/store"
	"github.com/curioapp/curio/internal/stream"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
			defer func() { _ = log.Sync() }()

			database, err := db.New(cfg.DB.Driver, cfg.DB.DSN)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			if err := db.Migrate(database, cfg.DB.Driver); err != nil {
				return err
			}

			sessionManager := auth.NewSessionManager(database, cfg.DB.Driver, cfg.SessionLifetime, !cfg.InsecureCookies)

			ctx := context.Background()
			oidcProvider, err := auth.NewProvider(ctx, cfg)
			if err != nil {
				return err
			}

			hub := stream.NewHub(log)

			userStore := store.NewUserStore(database)
			bookmarkStore := store.NewBookmarkStore(database, hub)
			categoryStore := store.NewCategoryStore(database, hub)

			scraper := scrape.NewWorker(bookmarkStore, log)
			go scraper.Run(ctx)

			if cfg.Redis.Addr != "" {
				bridge, err := stream.NewRedisBridge(ctx, hub, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
				if err != nil {
					return err
				}
				hub.AttachBridge(bridge)
				go bridge.Run(ctx)
			}

			// Periodic resync nudges every connected board to take a fresh
			// snapshot, bounding drift from any missed change events.
			c := cron.New()
			if _, err := c.AddFunc(cfg.ResyncSchedule, hub.BroadcastResync); err != nil {
				return err
			}
			c.Start()
			defer c.Stop()

			authHandlers := auth.NewHandlers(oidcProvider, sessionManager, userStore, !cfg.InsecureCookies)
			authMiddleware := auth.NewMiddleware(sessionManager, userStore)

			router := api.NewRouter(api.Deps{
				SessionManager:  sessionManager,
				AuthHandlers:    authHandlers,
				AuthMiddleware:  authMiddleware,
				Bookmarks:       bookmarkStore,
				Categories:      categoryStore,
				Hub:             hub,
				Scraper:         scraper,
				RefreshInterval: cfg.RefreshInterval,
				Log:             log,
			})

			log.Info("listening", logger.String("addr", cfg.HTTP.Addr))
			return http.ListenAndServe(cfg.HTTP.Addr, router)
		},
	}
}
