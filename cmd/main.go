package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/storyboard-backend/internal/app"
)

func main() {
	root := &cobra.Command{
		Use:           "storyboard",
		Short:         "Diary to storyboard backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), workerCmd(), migrateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var noWorker bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, running jobs in-process unless --no-worker is set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), true, !noWorker)
		},
	}
	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "do not claim jobs in this process")
	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run background jobs only",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), false, true)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := app.NewLogger()
			if err != nil {
				return err
			}
			defer log.Sync()
			svc, err := app.OpenDB(log)
			if err != nil {
				return err
			}
			log.Info("Schema migrated", "driver", svc.Driver())
			return svc.Close()
		},
	}
}

func run(ctx context.Context, server, worker bool) error {
	log, err := app.NewLogger()
	if err != nil {
		return err
	}
	cfg := app.LoadConfig(log)
	cfg.RunServer = server
	cfg.RunWorker = worker && cfg.RunWorker

	a, err := app.New(ctx, log, cfg)
	if err != nil {
		log.Error("App init failed", "error", err)
		log.Sync()
		return err
	}
	defer a.Close(ctx)

	if err := a.Start(ctx); err != nil {
		return err
	}
	return a.Run(ctx)
}
