package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cancelmem/cancelmem-backend/pkg/config"
	"github.com/cancelmem/cancelmem-backend/pkg/db"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
	"github.com/cancelmem/cancelmem-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

var errUsage = errors.New("usage")

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.cmd, "cmd", "up", "up|down|status|version|create|validate")
	fs.StringVar(&opts.dir, "dir", migrate.EmbeddedDir, `migrations directory, or "embedded" for the compiled-in set`)
	fs.StringVar(&opts.name, "name", "", "migration name (create)")
	fs.StringVar(&opts.version, "version", "", "target version YYYYMMDDHHMMSS (version)")
	if err := fs.Parse(args); err != nil {
		return opts, errUsage
	}
	return opts, nil
}

// run handles the offline commands without touching config so they work on
// a bare checkout; the rest connect to the configured database.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("create: -name is required")
		}
		dir := opts.dir
		if dir == migrate.EmbeddedDir {
			dir = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(dir, opts.name)
		if err != nil {
			return fmt.Errorf("create: %w", err)
		}
		fmt.Fprintln(stdout, "created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return fmt.Errorf("validate: %w", err)
		}
		fmt.Fprintln(stdout, "migration validation passed")
		return nil
	case "up", "down", "status":
	case "version":
		if opts.version == "" {
			return errors.New("version: -version is required")
		}
	default:
		return fmt.Errorf("unknown -cmd %q", opts.cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		Env:         cfg.App.Env,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"driver": cfg.DB.Driver,
		"cmd":    opts.cmd,
		"dir":    opts.dir,
	})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "database unavailable", err)
		return err
	}
	defer client.Close()

	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}

	if opts.cmd == "version" {
		err = migrate.MigrateToVersion(ctx, sqlDB, client.Dialect(), opts.dir, opts.version)
	} else {
		err = migrate.Run(ctx, sqlDB, client.Dialect(), opts.dir, opts.cmd)
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		return err
	}
	logg.Info(ctx, "migration finished")
	return nil
}
