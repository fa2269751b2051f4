// Package stage runs one pipeline stage as a standalone process: it loads
// configuration, connects to the store, applies the schema, executes the
// stage and maps the outcome to a process exit code.
package stage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stwalsh4118/kakaku/internal/config"
	"github.com/stwalsh4118/kakaku/internal/database"
	"github.com/stwalsh4118/kakaku/internal/logger"
	"github.com/stwalsh4118/kakaku/internal/services"
)

// Process exit codes.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
)

// Report is the outcome summary every stage logs on completion.
type Report interface {
	Fields() logger.Fields
}

// Env carries the shared resources handed to a stage.
type Env struct {
	Config *config.Config
	DB     *database.Database
	Log    *logger.Logger
}

// Func is the body of a stage.
type Func func(ctx context.Context, env *Env) (Report, error)

// Main runs the stage and exits the process with its exit code.
func Main(name string, fn Func) {
	os.Exit(Run(name, fn))
}

// Run executes the stage and returns the exit code. Only one stage holds the
// pipeline lock at a time. SIGINT and SIGTERM cancel the stage context;
// whatever the stage already committed stays.
func Run(name string, fn Func) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return ExitConfiguration
	}

	log := logger.New(cfg.Server.Env).WithStage(name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Error("Failed to connect to database", err, logger.Fields{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
		return ExitFailure
	}
	defer db.Close()

	lock, err := db.TryLock(ctx, database.PipelineLockKey)
	if err != nil {
		log.Error("Failed to take pipeline lock", err, nil)
		return ExitFailure
	}
	defer func() {
		if err := lock.Unlock(context.Background()); err != nil {
			log.Warn("Failed to release pipeline lock", logger.Fields{"error": err.Error()})
		}
	}()

	if err := db.Migrate(ctx); err != nil {
		log.Error("Failed to apply schema", err, nil)
		return ExitFailure
	}

	env := &Env{Config: cfg, DB: db, Log: log}
	return Execute(ctx, log, func(ctx context.Context) (Report, error) {
		return fn(ctx, env)
	})
}

// Execute runs body, logs its report and returns the matching exit code.
func Execute(ctx context.Context, log *logger.Logger, body func(ctx context.Context) (Report, error)) int {
	start := time.Now()
	log.Info("Stage started", nil)

	report, err := body(ctx)

	fields := logger.Fields{}
	if report != nil {
		for k, v := range report.Fields() {
			fields[k] = v
		}
	}
	fields["duration"] = time.Since(start).String()

	if err != nil {
		code := ExitCode(err)
		fields["exit_code"] = code
		log.Error("Stage failed", err, fields)
		return code
	}

	log.Info("Stage finished", fields)
	return ExitOK
}

// ExitCode maps a stage error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, services.ErrConfiguration), errors.Is(err, config.ErrMissingAPIKey):
		return ExitConfiguration
	default:
		return ExitFailure
	}
}
