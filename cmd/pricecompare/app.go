package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/geniass/pricecompare/pkg/compare"
	"github.com/geniass/pricecompare/pkg/config"
	"github.com/geniass/pricecompare/pkg/currency"
	"github.com/geniass/pricecompare/pkg/history"
	"github.com/geniass/pricecompare/pkg/service"
)

// application holds everything a command needs, built from one config.
type application struct {
	cfg      *config.Config
	logger   *slog.Logger
	rates    currency.Source
	comparer *compare.Comparer
	store    *history.SQLiteStore
	svc      *service.Service

	closers []func() error
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApplication wires the rate source, comparer and history store. The
// history store is only opened when withHistory is set.
func newApplication(ctx context.Context, cfg *config.Config, withHistory bool) (*application, error) {
	a := &application{
		cfg:    cfg,
		logger: cfg.Logger(os.Stderr),
	}
	slog.SetDefault(a.logger)

	cache, err := a.rateCache(ctx)
	if err != nil {
		return nil, err
	}
	a.rates = currency.CachedSource{
		Source: currency.ECBSource{URL: cfg.Rates.URL, Session: cfg.Session()},
		Cache:  cache,
		Key:    cfg.Rates.Key,
		TTL:    cfg.Rates.TTL.Duration,
		Logger: a.logger,
	}

	a.comparer, err = compare.New(cfg.Comparer(a.rates, a.logger))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create comparer: %w", err)
	}

	if withHistory {
		a.store, err = history.Open(cfg.Storage.Path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open history %q: %w", cfg.Storage.Path, err)
		}
		a.closers = append(a.closers, a.store.Close)
		a.svc = service.New(a.comparer, a.store, cfg.Service(), a.logger)
	}

	return a, nil
}

// rateCache shares rate tables through redis when an address is configured
// and keeps them in process otherwise.
func (a *application) rateCache(ctx context.Context) (currency.Cache, error) {
	if a.cfg.Redis.Addr == "" {
		return currency.NewMemoryCache(), nil
	}
	rc, err := currency.NewRedisCache(ctx, a.cfg.RedisCache())
	if err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", a.cfg.Redis.Addr, err)
	}
	a.closers = append(a.closers, rc.Close)
	a.logger.Info("rate cache: redis", slog.String("addr", a.cfg.Redis.Addr))
	return rc, nil
}

func (a *application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
