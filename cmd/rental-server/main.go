package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lepton-rental/internal/config"
	"lepton-rental/internal/dispatch"
	"lepton-rental/internal/ledger"
	"lepton-rental/internal/logging"
	"lepton-rental/internal/rental"
	"lepton-rental/internal/store"
	httptransport "lepton-rental/internal/transport/http"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

// catalog lists the market implementations the binary can run.
var catalog = map[string]rental.Logic{
	"v1": rental.Engine{},
}

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal().Err(err).Msg("load server config failed")
	}
	flags := pflag.NewFlagSet("rental-server", pflag.ExitOnError)
	flags.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "HTTP listen address")
	flags.StringVar(&cfg.MarketParamsPath, "market-params", cfg.MarketParamsPath, "YAML file with market parameters")
	flags.StringVar(&cfg.ModuleRef, "module", cfg.ModuleRef, "market implementation to activate")
	_ = flags.Parse(os.Args[1:])

	marketCfg, err := config.LoadMarket(cfg.MarketParamsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load market params failed")
	}
	params, err := marketParams(marketCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid market params")
	}

	st, err := store.New(cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer st.Close()
	if err := st.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}

	svc, err := openMarket(context.Background(), st, cfg, params)
	if err != nil {
		log.Fatal().Err(err).Msg("open market failed")
	}

	led := ledger.New(st)
	r := httptransport.NewRouter(httptransport.Deps{
		Market:  svc,
		Records: st,
		Minter:  led,
		Config:  cfg,
	})
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("module", cfg.ModuleRef).Msg("http listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if err := svc.Snapshot(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("final snapshot failed")
	}
}

// openMarket restores the latest snapshot when there is one and makes sure
// cfg.ModuleRef is the active implementation.
func openMarket(ctx context.Context, st *store.Store, cfg config.ServerConfig, params rental.Params) (*rental.Service, error) {
	modules := dispatch.NewRegistry[rental.Logic](cfg.OwnerID)
	for ref, impl := range catalog {
		if err := modules.Register(ref, impl); err != nil {
			return nil, err
		}
	}
	if _, ok := catalog[cfg.ModuleRef]; !ok {
		return nil, fmt.Errorf("unknown module %q", cfg.ModuleRef)
	}

	svc := rental.NewService(rental.NewState(cfg.OwnerID, params), modules, rental.Options{
		Payments:      ledger.New(st),
		Journal:       newJournal(st),
		SnapshotEvery: cfg.SnapshotEvery,
	})

	snap, err := st.LatestMarketSnapshot(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Info().Msg("no snapshot, starting a fresh market")
	case err != nil:
		return nil, err
	default:
		if err := svc.Restore(snap.Data, snap.Digest); err != nil {
			return nil, fmt.Errorf("restore snapshot %s: %w", snap.ID, err)
		}
		log.Info().Str("snapshot", snap.ID).Int64("term", snap.Term).Str("digest", snap.Digest).Msg("market restored")
	}

	if owner := svc.Owner(); owner != cfg.OwnerID {
		log.Warn().Str("snapshot_owner", owner).Str("configured_owner", cfg.OwnerID).Msg("owner differs from snapshot, admin calls will be rejected")
	}
	if cur, err := svc.Implementation(); err == nil && cur.Module == cfg.ModuleRef {
		return svc, nil
	}
	if _, err := svc.Upgrade(ctx, modules.Owner(), cfg.ModuleRef, time.Now()); err != nil {
		return nil, fmt.Errorf("activate module %s: %w", cfg.ModuleRef, err)
	}
	return svc, nil
}

func marketParams(c config.MarketConfig) (rental.Params, error) {
	p := rental.Params{
		MinPricePerBit:     c.MinPricePerBit,
		TotalSeats:         c.TotalSeats,
		MaxSeatPercentage:  c.MaxSeatPercentage,
		UsefulnessExponent: c.UsefulnessExponent,
		PowerUserFee:       c.PowerUserFee,
		HistoricalFee:      c.HistoricalFee,
		HistoricalPolicy:   rental.HistoricalPolicy(c.HistoricalPolicy),
	}
	return p, p.Validate()
}
