package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atvirokodosprendimai/opsledger/internal/app"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "opsledger",
		Usage: "Audited procurement and budget ledger API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: ":8080",
				Usage: "HTTP listen address",
			},
			&cli.StringFlag{
				Name:  "db-path",
				Value: "./opsledger.sqlite",
				Usage: "SQLite file path",
			},
			&cli.StringFlag{
				Name:    "bootstrap-api-key",
				Sources: cli.EnvVars("OPSLEDGER_BOOTSTRAP_API_KEY"),
				Usage:   "Optional API key to upsert at startup",
			},
			&cli.StringFlag{
				Name:    "bootstrap-user-email",
				Value:   "bootstrap@localhost",
				Sources: cli.EnvVars("OPSLEDGER_BOOTSTRAP_USER_EMAIL"),
				Usage:   "Email of the user the bootstrap API key acts as",
			},
			&cli.StringFlag{
				Name:    "bootstrap-user-name",
				Value:   "bootstrap",
				Sources: cli.EnvVars("OPSLEDGER_BOOTSTRAP_USER_NAME"),
				Usage:   "Display name for the bootstrap user and key",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars("OPSLEDGER_WEBHOOK_URL"),
				Usage:   "Outbox event webhook target URL (enables push delivery of approval events)",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars("OPSLEDGER_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for outbound webhook requests",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := app.Config{
				Addr:               c.String("addr"),
				DBPath:             c.String("db-path"),
				BootstrapAPIKey:    c.String("bootstrap-api-key"),
				BootstrapUserEmail: c.String("bootstrap-user-email"),
				BootstrapUserName:  c.String("bootstrap-user-name"),
				WebhookURL:         c.String("webhook-url"),
				WebhookSecret:      c.String("webhook-secret"),
			}

			server, closer, err := app.NewServer(ctx, cfg)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}
			defer func() {
				if closeErr := closer.Close(); closeErr != nil {
					log.Printf("close resources: %v", closeErr)
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				log.Printf("listening on %s", cfg.Addr)
				errCh <- server.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case sig := <-sigCh:
				log.Printf("received signal %s", sig)
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
