package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	cli "github.com/jawher/mow.cli"

	"github.com/geniass/pricecompare/pkg/currency"
	dataio "github.com/geniass/pricecompare/pkg/io"
	"github.com/geniass/pricecompare/pkg/web"
)

func main() {
	app := cli.App("pricecompare", "Compare a product's price across storefront mirrors")

	configPath := app.String(cli.StringOpt{
		Name:   "c config",
		Value:  "",
		Desc:   "path to a TOML configuration file",
		EnvVar: "PRICECOMPARE_CONFIG",
	})

	// run loads the config, wires the application and runs fn with a context
	// cancelled on SIGINT or SIGTERM.
	run := func(withHistory bool, fn func(ctx context.Context, a *application) error) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			cli.Exit(1)
		}

		a, err := newApplication(ctx, cfg, withHistory)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			cli.Exit(1)
		}

		err = fn(ctx, a)
		if cerr := a.Close(); cerr != nil {
			a.logger.Warn("close", slog.String("error", cerr.Error()))
		}
		if err != nil {
			a.logger.Error("command failed", slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			cli.Exit(1)
		}
	}

	app.Command("serve", "Serve the JSON API and HTML pages", func(cmd *cli.Cmd) {
		cmd.Action = func() {
			run(true, serve)
		}
	})

	app.Command("compare", "Compare prices of one product", func(cmd *cli.Cmd) {
		var (
			id       = cmd.StringArg("ID", "", "product identifier or product link")
			user     = cmd.IntOpt("u user", -1, "user to record the search for (default: server.default_user)")
			outDir   = cmd.StringOpt("o out", "", "directory to export the comparison to as JSON (default: export.dir)")
			markdown = cmd.BoolOpt("m markdown", false, "print a markdown summary instead of JSON")
		)
		cmd.Action = func() {
			run(true, func(ctx context.Context, a *application) error {
				userID := a.cfg.Server.DefaultUser
				if *user >= 0 {
					userID = int64(*user)
				}

				cmp, err := a.svc.ComparePrices(ctx, userID, *id)
				if err != nil {
					return err
				}

				dir := *outDir
				if dir == "" {
					dir = a.cfg.Export.Dir
				}
				if dir != "" {
					path, err := dataio.SaveComparison(dir, cmp)
					if err != nil {
						return fmt.Errorf("export comparison: %w", err)
					}
					a.logger.Info("comparison exported", slog.String("path", path))
				}

				if *markdown {
					return markdownTemplate.Execute(os.Stdout, cmp)
				}
				return printJSON(os.Stdout, cmp)
			})
		}
	})

	app.Command("history", "Show a user's past searches", func(cmd *cli.Cmd) {
		user := cmd.IntOpt("u user", -1, "user whose history to show (default: server.default_user)")
		cmd.Action = func() {
			run(true, func(ctx context.Context, a *application) error {
				userID := a.cfg.Server.DefaultUser
				if *user >= 0 {
					userID = int64(*user)
				}
				records, err := a.svc.History(ctx, userID)
				if err != nil {
					return err
				}
				return printJSON(os.Stdout, records)
			})
		}
	})

	app.Command("product", "Show a product's details on the origin storefront", func(cmd *cli.Cmd) {
		id := cmd.StringArg("ID", "", "product identifier or product link")
		cmd.Action = func() {
			run(true, func(ctx context.Context, a *application) error {
				p, err := a.svc.ProductDetails(ctx, *id)
				if err != nil {
					return err
				}
				return printJSON(os.Stdout, p)
			})
		}
	})

	app.Command("rates", "Print the current exchange rates", func(cmd *cli.Cmd) {
		cmd.Action = func() {
			run(false, func(ctx context.Context, a *application) error {
				t, err := a.rates.Rates(ctx)
				if err != nil {
					return err
				}
				return printRates(os.Stdout, t)
			})
		}
	})

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, a *application) error {
	srv := web.NewServer(a.cfg.Web(), a.svc, a.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRates(w io.Writer, t currency.Table) error {
	codes := make([]string, 0, len(t.Rates))
	for code := range t.Rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	if _, err := fmt.Fprintf(w, "base %s, published %s\n", t.Base, t.Date.Format(time.DateOnly)); err != nil {
		return err
	}
	for _, code := range codes {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", code, t.Rates[code]); err != nil {
			return err
		}
	}
	return nil
}
