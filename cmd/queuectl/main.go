package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"genqueue/internal/infra"
	"genqueue/internal/queue"
	"genqueue/internal/sqlinline"
)

// queuectl is the operator CLI for the generation queue: migrations, queue
// inspection, out-of-band user provisioning and manual recovery.
func main() {
	root := &cobra.Command{
		Use:           "queuectl",
		Short:         "Operate the generation job queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		migrateCmd(),
		statsCmd(),
		listCmd(),
		cancelCmd(),
		sweepCmd(),
		addUserCmd(),
		grantCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "queuectl:", err)
		os.Exit(1)
	}
}

func withRunner(fn func(ctx context.Context, runner *infra.SQLRunner, cfg *infra.Config) error) error {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, infra.NewSQLRunner(pool, logger), cfg)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := infra.LoadConfig()
			if err != nil {
				return err
			}
			if err := infra.RunMigrations(cfg.DatabaseURL); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-status job counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(ctx context.Context, runner *infra.SQLRunner, _ *infra.Config) error {
				rows, err := runner.Query(ctx, sqlinline.QJobStatusCounts)
				if err != nil {
					return err
				}
				defer rows.Close()

				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "STATUS\tCOUNT")
				for rows.Next() {
					var status string
					var count int64
					if err := rows.Scan(&status, &count); err != nil {
						return err
					}
					fmt.Fprintf(w, "%s\t%d\n", status, count)
				}
				if err := rows.Err(); err != nil {
					return err
				}
				return w.Flush()
			})
		},
	}
}

func listCmd() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(ctx context.Context, runner *infra.SQLRunner, _ *infra.Config) error {
				rows, err := runner.Query(ctx, sqlinline.QListJobs, status, limit)
				if err != nil {
					return err
				}
				defer rows.Close()

				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tUSER\tTYPE\tSTATUS\tPRIORITY\tRESERVED\tCREATED")
				for rows.Next() {
					var id, userID, jobType, jobStatus string
					var priority, reserved int64
					var createdAt time.Time
					if err := rows.Scan(&id, &userID, &jobType, &jobStatus, &priority, &reserved, &createdAt); err != nil {
						return err
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
						id, userID, jobType, jobStatus, priority, reserved, createdAt.Format(time.RFC3339))
				}
				if err := rows.Err(); err != nil {
					return err
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by job status")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows to return")
	return cmd
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id> <user-id>",
		Short: "Cancel a queued job on behalf of its owner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(ctx context.Context, runner *infra.SQLRunner, _ *infra.Config) error {
				var id string
				if err := runner.QueryRow(ctx, sqlinline.QCancelJob, args[0], args[1]).Scan(&id); err != nil {
					if infra.IsNoRows(err) {
						return fmt.Errorf("job %s is not queued for that user", args[0])
					}
					return err
				}
				fmt.Printf("cancelled %s\n", id)
				return nil
			})
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the stale-job cleanup pass once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(ctx context.Context, runner *infra.SQLRunner, cfg *infra.Config) error {
				logger := infra.NewLogger(cfg.AppEnv)
				scheduler := queue.NewScheduler(runner, nil, queue.SchedulerOptions{
					Budget:      cfg.SchedulerBudget,
					CallTimeout: cfg.BackendTimeout,
					MaxRuntime:  cfg.MaxJobRuntime,
				}, logger)
				swept, err := scheduler.SweepStale(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("swept %d stale jobs\n", swept)
				return nil
			})
		},
	}
}

func addUserCmd() *cobra.Command {
	var plan string
	var credits int64
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Provision a user for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(ctx context.Context, runner *infra.SQLRunner, _ *infra.Config) error {
				var id string
				if err := runner.QueryRow(ctx, sqlinline.QCreateUser, plan, credits).Scan(&id); err != nil {
					return err
				}
				fmt.Println(id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&plan, "plan", "free", "plan tier")
	cmd.Flags().Int64Var(&credits, "credits", 100, "starting credit balance")
	return cmd
}

func grantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant <user-id> <credits>",
		Short: "Top up a user's credit balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(ctx context.Context, runner *infra.SQLRunner, _ *infra.Config) error {
				var amount int64
				if _, err := fmt.Sscan(args[1], &amount); err != nil {
					return fmt.Errorf("invalid credit amount %q", args[1])
				}
				var balance int64
				if err := runner.QueryRow(ctx, sqlinline.QGrantCredits, args[0], amount).Scan(&balance); err != nil {
					if infra.IsNoRows(err) {
						return fmt.Errorf("user %s not found", args[0])
					}
					return err
				}
				fmt.Printf("new balance: %d\n", balance)
				return nil
			})
		},
	}
}
