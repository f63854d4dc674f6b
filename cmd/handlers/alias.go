package handlers

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"argus/internal/alias"
	"argus/internal/config"
	"argus/internal/entity"
	"argus/internal/model"
)

// NewAliasCmd builds the alias-admin command tree: migrate_static, add,
// test, create_review_batch, review_batch, stats.
func NewAliasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alias",
		Short: "Inspect and curate the Alias Repository's entity equivalences",
	}

	cmd.AddCommand(newAliasMigrateStaticCmd())
	cmd.AddCommand(newAliasAddCmd())
	cmd.AddCommand(newAliasTestCmd())
	cmd.AddCommand(newAliasCreateReviewBatchCmd())
	cmd.AddCommand(newAliasReviewBatchCmd())
	cmd.AddCommand(newAliasStatsCmd())

	return cmd
}

func openAliasRepo(cfg *config.Config) (*alias.Repository, *sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Store.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to store: %w", err)
	}
	return alias.New(db, cfg.Alias.CacheCapacity, cfg.Alias.CacheTTL), db, nil
}

func newAliasMigrateStaticCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate_static",
		Short: "Seed the Alias Repository from the static equivalence catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			repo, db, err := openAliasRepo(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			applied, err := repo.MigrateStatic(cmd.Context(), staticCatalog)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d static aliases\n", applied)
			return nil
		},
	}
}

func newAliasAddCmd() *cobra.Command {
	var source, entityType string
	var confidence float64

	c := &cobra.Command{
		Use:   "add <canonical> <alias>",
		Short: "Propose and immediately approve a new alias",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			repo, db, err := openAliasRepo(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			id, err := repo.ProposeAlias(cmd.Context(), args[0], args[1], model.EntityType(entityType), model.AliasSource(source), confidence, nil)
			if err != nil {
				return err
			}
			if err := repo.Approve(cmd.Context(), id, "cli"); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added alias %d: %s -> %s\n", id, args[1], args[0])
			return nil
		},
	}
	c.Flags().StringVar(&source, "source", string(model.AliasSourceUser), "alias source (STATIC|PATTERN|LLM|USER|FIX)")
	c.Flags().StringVar(&entityType, "type", string(model.EntityOrganization), "entity type")
	c.Flags().Float64Var(&confidence, "confidence", 1.0, "confidence score")
	return c
}

func newAliasTestCmd() *cobra.Command {
	var entityType string
	c := &cobra.Command{
		Use:   "test <a> <b>",
		Short: "Report how a candidate pair would resolve, in-memory and in the database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			repo, db, err := openAliasRepo(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			matcher := entity.NewMatcher(repo, repo, &cfg.Entity)
			result, err := repo.Test(cmd.Context(), matcher, args[0], args[1], model.EntityType(entityType))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "in_memory=%v db=%v normalized_a=%q normalized_b=%q\n",
				result.InMemory, result.DB, result.NormalizedA, result.NormalizedB)
			return nil
		},
	}
	c.Flags().StringVar(&entityType, "type", string(model.EntityOrganization), "entity type")
	return c
}

func newAliasCreateReviewBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create_review_batch <size>",
		Short: "List up to <size> pending alias proposals for human review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid size: %w", err)
			}
			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			repo, db, err := openAliasRepo(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			batch, err := repo.CreateReviewBatch(cmd.Context(), size)
			if err != nil {
				return err
			}
			for _, a := range batch {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s -> %s\t%s\t%.2f\n", a.ID, a.AliasName, a.CanonicalName, a.Source, a.Confidence)
			}
			return nil
		},
	}
}

func newAliasReviewBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review_batch <id>",
		Short: "Show one pending alias by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id: %w", err)
			}
			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			repo, db, err := openAliasRepo(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			a, err := repo.ReviewBatch(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s -> %s\t%s\t%.2f\n", a.ID, a.AliasName, a.CanonicalName, a.Source, a.Confidence)
			return nil
		},
	}
}

func newAliasStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show alias review queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			repo, db, err := openAliasRepo(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			s, err := repo.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pending=%d approved=%d rejected=%d\n", s.Pending, s.Approved, s.Rejected)
			return nil
		},
	}
}

// staticCatalog is the curated set of acronym/abbreviation equivalences
// migrate_static seeds on a fresh deployment.
var staticCatalog = []alias.StaticEntry{
	{Canonical: "Federal Bureau of Investigation", Alias: "FBI", Type: model.EntityOrganization},
	{Canonical: "Federal Emergency Management Agency", Alias: "FEMA", Type: model.EntityOrganization},
	{Canonical: "Centers for Disease Control and Prevention", Alias: "CDC", Type: model.EntityOrganization},
	{Canonical: "World Health Organization", Alias: "WHO", Type: model.EntityOrganization},
	{Canonical: "National Oceanic and Atmospheric Administration", Alias: "NOAA", Type: model.EntityOrganization},
}
