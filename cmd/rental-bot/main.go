package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lepton-rental/internal/config"
	"lepton-rental/internal/logging"
	"lepton-rental/internal/rental"

	"github.com/rs/zerolog/log"
)

type leaseRequest struct {
	LimitPricePerBit int64 `json:"limit_price_per_bit"`
	Seats            int64 `json:"seats"`
}

type client struct {
	base   string
	apiKey string
	http   *http.Client
}

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)

	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}
	if cfg.APIKey == "" {
		log.Fatal().Msg("API_KEY is required")
	}
	c := &client{base: cfg.APIURL, apiKey: cfg.APIKey, http: &http.Client{Timeout: 10 * time.Second}}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	var last leaseRequest
	for {
		if req, err := c.step(ctx, cfg, last); err != nil {
			log.Warn().Err(err).Msg("bid round failed")
		} else {
			last = req
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// step reads the market and resubmits the bid when it changed. Unchanged
// bids are not resent so the bot keeps its place in the queue.
func (c *client) step(ctx context.Context, cfg config.BotConfig, last leaseRequest) (leaseRequest, error) {
	var m rental.MarketView
	if err := c.do(ctx, http.MethodGet, "/api/public/market", nil, &m); err != nil {
		return last, err
	}
	req := decide(m, cfg.Seats, cfg.MaxPrice)
	if req == last {
		return last, nil
	}
	var acct rental.AccountView
	if err := c.do(ctx, http.MethodPost, "/api/account/lease", req, &acct); err != nil {
		return last, err
	}
	log.Info().
		Int64("price_per_bit", req.LimitPricePerBit).
		Int64("seats", req.Seats).
		Int64("escrow_balance", acct.EscrowBalance).
		Int64("next_term_seats", acct.NextTermSeats).
		Msg("bid placed")
	return req, nil
}

// decide bids the going next-term price, capped by maxPrice when set. A
// market priced above the cap cancels the bid.
func decide(m rental.MarketView, seats, maxPrice int64) leaseRequest {
	price := max(m.NextPricePerBit, m.MinPricePerBit)
	if maxPrice > 0 && price > maxPrice {
		return leaseRequest{}
	}
	if m.MaxSeatsPerAccount > 0 {
		seats = min(seats, m.MaxSeatsPerAccount)
	}
	return leaseRequest{LimitPricePerBit: price, Seats: seats}
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
