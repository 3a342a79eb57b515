package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/quotesync/internal/database"
	"github.com/rickgao/quotesync/internal/model"
	"github.com/rickgao/quotesync/internal/scheduler"
	"github.com/rickgao/quotesync/internal/server"
	"github.com/rickgao/quotesync/internal/syncer"
	"github.com/rickgao/quotesync/internal/task"
)

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := connect(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			hyper, err := database.Migrate(cmd.Context(), a.pool, a.logger)
			if err != nil {
				return err
			}
			a.logger.Info("schema applied", "hypertable", hyper)
			return nil
		},
	}
}

func newListCmd(flags *rootFlags) *cobra.Command {
	var (
		category  string
		exchanges []string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Refresh the instrument catalog from upstream lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := model.ParseCategory(category)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.svc.SyncInstrumentList(cmd.Context(), cat, model.NormalizeExchangeCodes(exchanges))
			if perr := printJSON(res); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "instrument category: stock or fund")
	cmd.Flags().StringSliceVar(&exchanges, "exchange", nil, "exchange codes (default: every exchange of the category)")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newOneCmd(flags *rootFlags) *cobra.Command {
	var symbol string
	cmd := &cobra.Command{
		Use:   "one",
		Short: "Sync daily bars for a single cataloged symbol",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.svc.SyncOne(cmd.Context(), strings.ToUpper(strings.TrimSpace(symbol)))
			if perr := printJSON(res); perr != nil {
				return perr
			}
			if err != nil {
				return err
			}
			if res.Status == syncer.StatusFailed {
				return fmt.Errorf("sync %s failed: %s", res.Symbol, res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "symbol such as SH.510050")
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}

func newBatchCmd(flags *rootFlags) *cobra.Command {
	var (
		category  string
		maxCount  int
		skipCount int
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Sync daily bars for every active instrument of a category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := model.ParseCategory(category)
			if err != nil {
				return err
			}
			if maxCount < 0 || skipCount < 0 {
				return fmt.Errorf("--max and --skip must be non-negative")
			}
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := a.svc.SyncBatch(cmd.Context(), syncer.BatchRequest{
				Category: cat,
				Options:  syncer.Options{MaxCount: maxCount, SkipCount: skipCount},
			}, func(p syncer.Progress) {
				a.logger.Info("batch progress",
					"done", p.Done,
					"total", p.Total,
					"succeeded", p.Succeeded,
					"up_to_date", p.UpToDate,
					"failed", p.Failed,
					"elapsed", p.Elapsed.Round(time.Second),
					"remaining", p.Remaining.Round(time.Second),
				)
			})
			if perr := printJSON(sum); perr != nil {
				return perr
			}
			if err != nil {
				return err
			}
			if sum.Cancelled {
				return fmt.Errorf("batch cancelled after %d of %d instruments", sum.Processed, sum.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "instrument category: stock or fund")
	cmd.Flags().IntVar(&maxCount, "max", 0, "maximum instruments to process (0 = all)")
	cmd.Flags().IntVar(&skipCount, "skip", 0, "instruments to skip from the start")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP trigger API and run the daily schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			tasks := task.NewManager(a.logger)
			srv := server.New(server.Config{
				Port:          a.cfg.Server.Port,
				TaskRetention: a.cfg.Server.TaskRetention,
			}, a.svc, tasks, a.logger)

			var sched *scheduler.Scheduler
			if a.cfg.Schedule.Enabled {
				cats, err := parseCategories(a.cfg.Schedule.Categories)
				if err != nil {
					return err
				}
				sched, err = scheduler.New(scheduler.Config{Spec: a.cfg.Schedule.Cron, Location: model.ChinaTZ},
					tasks, scheduler.DailyJob(a.svc, cats), a.logger)
				if err != nil {
					return err
				}
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Run(gctx)
			})
			if sched != nil {
				sched.Start()
				g.Go(func() error {
					<-gctx.Done()
					return sched.Stop(context.Background())
				})
			}

			a.logger.Info("quotesync serving",
				"port", a.cfg.Server.Port,
				"schedule", a.cfg.Schedule.Enabled,
				"cron", a.cfg.Schedule.Cron,
			)
			err = g.Wait()

			a.logger.Info("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*a.cfg.Sync.WriteTimeout)
			defer cancel()
			if serr := tasks.Shutdown(shutdownCtx); serr != nil {
				a.logger.Error("tasks did not stop in time", "error", serr)
			}
			a.logger.Info("quotesync stopped")
			return err
		},
	}
}

func parseCategories(names []string) ([]model.Category, error) {
	if len(names) == 0 {
		return []model.Category{model.CategoryFund, model.CategoryStock}, nil
	}
	out := make([]model.Category, 0, len(names))
	for _, n := range names {
		cat, err := model.ParseCategory(n)
		if err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
