package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"argus/internal/config"
	"argus/internal/store"
)

// NewMigrateCmd builds the migrate command tree: up, status.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the Persistent Store's schema migrations",
	}
	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateStatusCmd())
	return cmd
}

func openStore(cfg *config.Config) (*store.DB, error) {
	return store.Open(cfg.Store.DSN, cfg.Store.MaxConnections, cfg.Store.IdleConnections)
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			return store.NewMigrator(db).Migrate(cmd.Context())
		},
	}
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether each has been applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			statuses, err := store.NewMigrator(db).Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range statuses {
				applied := "pending"
				if s.Applied {
					applied = "applied"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%03d  %-8s  %s\n", s.Version, applied, s.Description)
			}
			return nil
		},
	}
}
