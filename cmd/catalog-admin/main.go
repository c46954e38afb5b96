// Command catalog-admin provides operator tooling for the catalog ingestion
// service: creating, inspecting, cancelling, and deleting import jobs, and
// running database migrations.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pricewise/catalog-ingest/config"
	"github.com/pricewise/catalog-ingest/internal/adapters/queue"
	"github.com/pricewise/catalog-ingest/internal/bootstrap"
	"github.com/pricewise/catalog-ingest/internal/data"
	"github.com/pricewise/catalog-ingest/internal/domain/model"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const (
	defaultCommandTimeout   = 2 * time.Minute
	defaultMigrationTimeout = 5 * time.Minute
)

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"create-job": {
			name:        "create-job",
			description: "Create a pending import job for an uploaded file and enqueue it",
			run:         runCreateJob,
		},
		"cancel-job": {
			name:        "cancel-job",
			description: "Request cancellation of a pending or running import job",
			run:         runCancelJob,
		},
		"job-status": {
			name:        "job-status",
			description: "Show an import job's status and progress",
			run:         runJobStatus,
		},
		"list-jobs": {
			name:        "list-jobs",
			description: "List import jobs in a given status",
			run:         runListJobs,
		},
		"delete-job": {
			name:        "delete-job",
			description: "Delete a pending import job",
			run:         runDeleteJob,
		},
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: catalog-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	for _, c := range commands() {
		if err := writef(os.Stdout, "  %-14s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

type createJobOptions struct {
	SourceKey string
	NoEnqueue bool
}

type jobIDOptions struct {
	JobID string
}

type listJobsOptions struct {
	Status string
}

type migrateOptions struct {
	Timeout time.Duration
}

func runCreateJob(cmdCtx *commandContext, args []string) error {
	opts, err := parseCreateJobFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewJobRepo(db, data.JobRepoConfig{Logger: cmdCtx.Logger})
		job, createErr := repo.Create(ctx, &model.CreateJobRequest{SourceKey: opts.SourceKey})
		if createErr != nil {
			return fmt.Errorf("create job: %w", createErr)
		}

		cmdCtx.Logger.InfoContext(ctx, "import job created", "job_id", job.ID, "source_key", job.SourceKey)

		if opts.NoEnqueue {
			return writef(os.Stdout, "%s\n", job.ID)
		}

		enqueuer := queue.NewEnqueuer(bootstrap.QueueRedisOpt(cmdCtx.Config.Redis), queue.EnqueuerOptions{
			Queue:  cmdCtx.Config.Importer.QueueName,
			Logger: cmdCtx.Logger,
		})
		defer func() {
			if cerr := enqueuer.Close(); cerr != nil {
				cmdCtx.Logger.Warn("close queue client failed", "error", cerr)
			}
		}()

		if enqErr := enqueuer.EnqueueImport(ctx, job.ID); enqErr != nil {
			return fmt.Errorf("enqueue job %s: %w", job.ID, enqErr)
		}
		return writef(os.Stdout, "%s\n", job.ID)
	})
}

func runCancelJob(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobIDFlags("cancel-job", args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewJobRepo(db, data.JobRepoConfig{Logger: cmdCtx.Logger})
		if cancelErr := repo.Cancel(ctx, opts.JobID); cancelErr != nil {
			if errors.Is(cancelErr, data.ErrJobNotCancellable) {
				return fmt.Errorf("job %s is already finished and cannot be cancelled", opts.JobID)
			}
			return fmt.Errorf("cancel job: %w", cancelErr)
		}
		cmdCtx.Logger.InfoContext(ctx, "cancellation requested", "job_id", opts.JobID)
		return nil
	})
}

func runJobStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobIDFlags("job-status", args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewJobRepo(db, data.JobRepoConfig{Logger: cmdCtx.Logger})
		job, getErr := repo.GetByID(ctx, opts.JobID)
		if getErr != nil {
			return fmt.Errorf("get job: %w", getErr)
		}
		return printJob(job)
	})
}

func runListJobs(cmdCtx *commandContext, args []string) error {
	opts, err := parseListJobsFlags(args)
	if err != nil {
		return err
	}

	var status model.JobStatus
	if unmarshalErr := status.UnmarshalText([]byte(opts.Status)); unmarshalErr != nil {
		return unmarshalErr
	}

	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewJobRepo(db, data.JobRepoConfig{Logger: cmdCtx.Logger})
		jobs, listErr := repo.ListByStatus(ctx, status)
		if listErr != nil {
			return fmt.Errorf("list jobs: %w", listErr)
		}
		if len(jobs) == 0 {
			return writeln(os.Stdout, "(no jobs found)")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		if werr := writeln(w, "ID\tStatus\tProgress\tSource Key\tCreated"); werr != nil {
			return werr
		}
		for _, job := range jobs {
			if werr := writef(w, "%s\t%s\t%d/%d\t%s\t%s\n",
				job.ID, job.Status, job.ProcessedRows, job.TotalRows,
				job.SourceKey, job.CreatedAt.Format(time.RFC3339)); werr != nil {
				return werr
			}
		}
		return w.Flush()
	})
}

func runDeleteJob(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobIDFlags("delete-job", args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewJobRepo(db, data.JobRepoConfig{Logger: cmdCtx.Logger})
		if delErr := repo.Delete(ctx, opts.JobID); delErr != nil {
			if errors.Is(delErr, data.ErrJobNotDeletable) {
				return fmt.Errorf("job %s has started or finished; only pending jobs can be deleted", opts.JobID)
			}
			return fmt.Errorf("delete job: %w", delErr)
		}
		cmdCtx.Logger.InfoContext(ctx, "job deleted", "job_id", opts.JobID)
		return nil
	})
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.Info("running database migrations")
		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return fmt.Errorf("run migrations: %w", migrateErr)
		}
		cmdCtx.Logger.Info("migrations completed successfully")
		return nil
	})
}

func printJob(job *model.ImportJob) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writef(w, "ID\t%s\n", job.ID); err != nil {
		return err
	}
	if err := writef(w, "Status\t%s\n", job.Status); err != nil {
		return err
	}
	if err := writef(w, "Progress\t%d/%d rows\n", job.ProcessedRows, job.TotalRows); err != nil {
		return err
	}
	if err := writef(w, "Source Key\t%s\n", job.SourceKey); err != nil {
		return err
	}
	if job.FailureReason != nil {
		if err := writef(w, "Failure Reason\t%s\n", *job.FailureReason); err != nil {
			return err
		}
	}
	if err := writef(w, "Created\t%s\n", job.CreatedAt.Format(time.RFC3339)); err != nil {
		return err
	}
	if err := writef(w, "Updated\t%s\n", job.UpdatedAt.Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}

func parseCreateJobFlags(args []string) (createJobOptions, error) {
	fs := flag.NewFlagSet("create-job", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts createJobOptions
	fs.StringVar(&opts.SourceKey, "source-key", "", "Object store key of the uploaded file (required)")
	fs.BoolVar(&opts.NoEnqueue, "no-enqueue", false, "Create the job without submitting it to the queue")

	if err := fs.Parse(args); err != nil {
		return createJobOptions{}, err
	}

	opts.SourceKey = strings.TrimSpace(opts.SourceKey)
	if opts.SourceKey == "" {
		return createJobOptions{}, errors.New("--source-key is required")
	}
	return opts, nil
}

func parseJobIDFlags(name string, args []string) (jobIDOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts jobIDOptions
	fs.StringVar(&opts.JobID, "job-id", "", "Import job ID (required)")

	if err := fs.Parse(args); err != nil {
		return jobIDOptions{}, err
	}

	opts.JobID = strings.TrimSpace(opts.JobID)
	if opts.JobID == "" {
		return jobIDOptions{}, errors.New("--job-id is required")
	}
	return opts, nil
}

func parseListJobsFlags(args []string) (listJobsOptions, error) {
	fs := flag.NewFlagSet("list-jobs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listJobsOptions
	fs.StringVar(&opts.Status, "status", "processing", "Status to filter by (pending, processing, completed, failed)")

	if err := fs.Parse(args); err != nil {
		return listJobsOptions{}, err
	}
	return opts, nil
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{
		Timeout: defaultMigrationTimeout,
	}
	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for the command to complete",
	)

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}

	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func withDatabase(
	cmdCtx *commandContext,
	timeout time.Duration,
	f func(context.Context, *sql.DB) error,
) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", cerr)
		}
	}()

	return f(ctx, db)
}

func writef(w io.Writer, format string, args ...any) error {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func writeln(w io.Writer, args ...any) error {
	if _, err := fmt.Fprintln(w, args...); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
