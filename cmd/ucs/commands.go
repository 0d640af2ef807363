package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"github.com/ucsindex/engine/internal/api"
	"github.com/ucsindex/engine/internal/calendar"
	"github.com/ucsindex/engine/internal/config"
	"github.com/ucsindex/engine/internal/dependency"
	"github.com/ucsindex/engine/internal/domain"
	"github.com/ucsindex/engine/internal/plan"
	"github.com/ucsindex/engine/internal/recalc"
	"github.com/ucsindex/engine/internal/worker"
)

func dateFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "date",
		Usage:    "target date (YYYY-MM-DD or DD/MM/YYYY)",
		Required: true,
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API and the audit retention worker",
		Action: func(c *cli.Context) error {
			ctx := c.Context
			cfg := config.Load()

			rt, err := newRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			retention := worker.NewRetentionWorker(rt.audits, cfg.AuditRetention, cfg.AuditSweepInterval, cfg.AuditPurgeBatch, rt.locker)
			go retention.Run(ctx)

			if cfg.AdminAPIKey == "" {
				slog.Warn("ADMIN_API_KEY not set, recalculation endpoint is unprotected")
			}

			handler := api.NewHandler(rt.registry, rt.quotes, rt.cache, rt.recalc, rt.audits, calendar.NewGate(rt.holidays))
			srv := api.NewServer(cfg.HTTPPort, handler, cfg.AdminAPIKey)

			serveErr := make(chan error, 1)
			go func() {
				slog.Info("HTTP server listening", "port", cfg.HTTPPort)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
			}()

			select {
			case <-ctx.Done():
			case err := <-serveErr:
				return fmt.Errorf("HTTP server: %w", err)
			}
			slog.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("HTTP server shutdown error", "error", err)
			}
			slog.Info("shutdown complete")
			return nil
		},
	}
}

func recalcCommand() *cli.Command {
	return &cli.Command{
		Name:  "recalc",
		Usage: "edit base quotes and recalculate every dependent index",
		Flags: []cli.Flag{
			dateFlag(),
			&cli.StringSliceFlag{Name: "set", Usage: "asset=value, repeatable", Required: true},
			&cli.StringFlag{Name: "user", Value: "cli"},
		},
		Action: func(c *cli.Context) error {
			date, err := domain.ParseDate(c.String("date"))
			if err != nil {
				return err
			}
			edits, err := parseEdits(c.StringSlice("set"))
			if err != nil {
				return err
			}

			rt, err := newRuntime(c.Context, config.Load())
			if err != nil {
				return err
			}
			defer rt.Close()

			res, execErr := rt.recalc.Execute(c.Context, recalc.Request{TargetDate: date, Edits: edits, User: c.String("user")},
				func(p recalc.Progress) {
					slog.Info("progress", "state", p.State, "step", p.CurrentStep, "percentage", p.Percentage)
				})
			if err := printJSON(res); err != nil {
				return err
			}
			return execErr
		},
	}
}

func planCommand() *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "show the steps a recalculation would run without executing it",
		Flags: []cli.Flag{
			dateFlag(),
			&cli.StringSliceFlag{Name: "asset", Usage: "edited asset id, repeatable", Required: true},
		},
		Action: func(c *cli.Context) error {
			date, err := domain.ParseDate(c.String("date"))
			if err != nil {
				return err
			}
			cfg := config.Load()
			reg, err := dependency.Load(c.Context, cfg.RegistrySource)
			if err != nil {
				return err
			}

			edited := c.StringSlice("asset")
			if err := reg.ValidateEditable(edited); err != nil {
				return err
			}
			gen := plan.NewGenerator(reg, cfg.ExternalSyncEnabled())
			steps, err := gen.Generate(edited, date)
			if err != nil {
				return err
			}
			dependents, err := gen.Dependents(edited)
			if err != nil {
				return err
			}
			return printJSON(recalc.Preview{
				TargetDate:          domain.FormatISODate(date),
				AffectedAssets:      dependents,
				EstimatedDurationMs: gen.EstimateDuration(edited).Milliseconds(),
				Steps:               steps,
			})
		},
	}
}

func registryCommand() *cli.Command {
	return &cli.Command{
		Name:  "registry",
		Usage: "inspect the asset dependency registry",
		Subcommands: []*cli.Command{
			{
				Name:  "check",
				Usage: "validate the registry and print the full calculation order",
				Action: func(c *cli.Context) error {
					reg, err := dependency.Load(c.Context, config.Load().RegistrySource)
					if err != nil {
						return err
					}
					ids := lo.Map(reg.All(), func(a domain.AssetDependency, _ int) string { return a.ID })
					order, err := reg.CalculationOrder(ids)
					if err != nil {
						return err
					}
					fmt.Fprintf(os.Stdout, "registry %s: %d assets\n", reg.Version(), len(ids))
					for i, id := range order {
						fmt.Fprintf(os.Stdout, "%3d  %s\n", i+1, id)
					}
					return nil
				},
			},
		},
	}
}

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "audit log maintenance",
		Subcommands: []*cli.Command{
			{
				Name:  "purge",
				Usage: "delete audit entries older than AUDIT_RETENTION once",
				Action: func(c *cli.Context) error {
					cfg := config.Load()
					rt, err := newRuntime(c.Context, cfg)
					if err != nil {
						return err
					}
					defer rt.Close()

					w := worker.NewRetentionWorker(rt.audits, cfg.AuditRetention, cfg.AuditSweepInterval, cfg.AuditPurgeBatch, rt.locker)
					n, err := w.Sweep(c.Context)
					if err != nil {
						return err
					}
					fmt.Fprintf(os.Stdout, "purged %d audit entries\n", n)
					return nil
				},
			},
		},
	}
}

// parseEdits turns asset=value pairs into edits.
func parseEdits(pairs []string) ([]recalc.Edit, error) {
	edits := make([]recalc.Edit, 0, len(pairs))
	for _, pair := range pairs {
		id, raw, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("invalid edit %q, expected asset=value", pair)
		}
		value, err := domain.ParseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", id, err)
		}
		edits = append(edits, recalc.Edit{AssetID: strings.TrimSpace(id), Value: value})
	}
	return edits, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
