package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/curioapp/curio/internal/build"
	"github.com/curioapp/curio/internal/config"
	"github.com/curioapp/curio/internal/db"
	"github.com/curioapp/curio/internal/logger"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			database, err := db.New(cfg.DB.Driver, cfg.DB.DSN)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			if err := db.Migrate(database, cfg.DB.Driver); err != nil {
				return err
			}

			log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
			log.Info("migrations complete")
			_ = log.Sync()
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("curio %s (%s@%s)\n", build.Version, build.Branch, build.Commit)
		},
	}
}
