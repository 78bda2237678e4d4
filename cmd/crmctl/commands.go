package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chatcrm/crm-backend/internal/app"
	"github.com/chatcrm/crm-backend/internal/auth"
	"github.com/chatcrm/crm-backend/internal/config"
	"github.com/chatcrm/crm-backend/internal/database"
	"github.com/chatcrm/crm-backend/internal/logging"
	"github.com/chatcrm/crm-backend/internal/summary"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// cliEnv is resolved once per invocation in the root PersistentPreRunE
type cliEnv struct {
	cfg *config.Config
	log *logrus.Logger
}

func newRootCommand() *cobra.Command {
	env := &cliEnv{}

	root := &cobra.Command{
		Use:           "crmctl",
		Short:         "Operate the CRM chat ingestion and summary pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				cfg.Log.Level = "debug"
			}
			env.cfg = cfg
			env.log = logging.New(cfg.Log)
			return nil
		},
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newMigrateCommand(env),
		newRoomsCommand(env),
		newSummarizeCommand(env),
		newTokenCommand(env),
	)
	return root
}

func newMigrateCommand(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := database.RunMigrations(env.cfg.Database); err != nil {
					return err
				}
				env.log.Info("migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := database.RollbackMigration(env.cfg.Database); err != nil {
					return err
				}
				env.log.Info("migration rolled back")
				return nil
			},
		},
	)
	return cmd
}

// withPipeline opens the database and runs fn with the assembled pipeline
func withPipeline(cmd *cobra.Command, env *cliEnv, fn func(ctx context.Context, c *app.Components) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, components, err := app.Open(ctx, env.cfg, env.log)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(ctx, components)
}

func newRoomsCommand(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "Discover, link and sync Chatwork rooms",
	}

	discover := &cobra.Command{
		Use:   "discover",
		Short: "Register every Chatwork room visible to the API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd, env, func(ctx context.Context, c *app.Components) error {
				rooms, err := c.Syncer.DiscoverRooms(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rooms)
			})
		},
	}

	link := &cobra.Command{
		Use:   "link <room-id> [company-id]",
		Short: "Link a room to a company, or unlink it when no company is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID := ""
			if len(args) == 2 {
				companyID = args[1]
			}
			return withPipeline(cmd, env, func(ctx context.Context, c *app.Components) error {
				return c.Syncer.LinkRoom(ctx, args[0], companyID)
			})
		},
	}

	var force bool
	sync := &cobra.Command{
		Use:   "sync [room-id]",
		Short: "Fetch and import messages of one room, or of every linked room",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd, env, func(ctx context.Context, c *app.Components) error {
				if len(args) == 1 {
					result, err := c.Syncer.SyncRoom(ctx, args[0], force)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), result)
				}
				report, err := c.Syncer.SyncAll(ctx, force)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	sync.Flags().BoolVar(&force, "force", false, "fetch the latest messages even if already read")

	cmd.AddCommand(discover, link, sync)
	return cmd
}

func newSummarizeCommand(env *cliEnv) *cobra.Command {
	var (
		opts summary.Options
		all  bool
	)
	cmd := &cobra.Command{
		Use:   "summarize [company-id]",
		Short: "Generate and store a summary for a company, or for all linked companies",
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return fmt.Errorf("--all does not take a company id")
			}
			if !all && len(args) != 1 {
				return fmt.Errorf("expected a company id or --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd, env, func(ctx context.Context, c *app.Components) error {
				if all {
					report, err := c.Generator.GenerateAll(ctx, opts)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), report)
				}
				result, err := c.Generator.GenerateForCompany(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "summarize every company with linked rooms")
	cmd.Flags().IntVar(&opts.LookbackDays, "lookback-days", 0, "days of history to consider (default from config)")
	cmd.Flags().IntVar(&opts.MaxMessages, "max-messages", 0, "maximum messages to consider (default from config)")
	return cmd
}

func newTokenCommand(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API service tokens",
	}

	var (
		scopes []string
		ttl    time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue <subject>",
		Short: "Issue a signed service token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := auth.NewTokenService(env.cfg.Auth.JWTSecret, env.cfg.Auth.Issuer)
			if err != nil {
				return err
			}
			for _, s := range scopes {
				if s != auth.ScopeRead && s != auth.ScopeWrite {
					return fmt.Errorf("unknown scope %q (use %s or %s)", s, auth.ScopeRead, auth.ScopeWrite)
				}
			}
			token, err := tokens.Issue(args[0], scopes, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	issue.Flags().StringSliceVar(&scopes, "scope", []string{auth.ScopeRead}, "token scopes ("+strings.Join([]string{auth.ScopeRead, auth.ScopeWrite}, ", ")+")")
	issue.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "token lifetime")

	cmd.AddCommand(issue)
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
