package httptransport

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"lepton-rental/internal/config"
	"lepton-rental/internal/rental"
	"lepton-rental/internal/store"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// AccountResolver maps a bearer API key to a market identity.
type AccountResolver interface {
	GetAccountIDByAPIKey(ctx context.Context, apiKey string) (string, error)
}

// Records is the persistence the HTTP layer reads directly. *store.Store
// implements it.
type Records interface {
	AccountResolver
	Ping(ctx context.Context) error
	CreateAccountKey(ctx context.Context, accountID, apiKey string) (string, error)
	RevokeAccountKeys(ctx context.Context, accountID string) (int64, error)
	ListMarketEvents(ctx context.Context, f store.MarketEventFilter, limit, offset int) ([]store.MarketEvent, error)
	ListLedgerEntries(ctx context.Context, f store.LedgerFilter, limit, offset int) ([]store.LedgerEntry, error)
	ListWallets(ctx context.Context, limit, offset int) ([]store.Wallet, error)
}

// Minter issues new tokens into a wallet.
type Minter interface {
	Mint(ctx context.Context, walletID string, amount int64) (int64, error)
}

type Deps struct {
	Market  *rental.Service
	Records Records
	Minter  Minter
	Config  config.ServerConfig
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewRouter(d Deps) *chi.Mux {
	if d.Now == nil {
		d.Now = time.Now
	}
	publicHandlers := NewPublicHandlers(d.Market, d.Now)
	accountHandlers := NewAccountHandlers(d.Market, d.Now)
	adminHandlers := NewAdminHandlers(d.Market, d.Records, d.Minter, d.Config.OwnerID, d.Now)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/public/market", publicHandlers.Market())
		r.Get("/public/bids", publicHandlers.Bids())
		r.Get("/public/renters", publicHandlers.Renters())
		r.Get("/public/leptons", publicHandlers.Leptons())
		r.Get("/public/clients", publicHandlers.Clients())
		r.Get("/public/roles", publicHandlers.Roles())
		r.Get("/public/implementations", publicHandlers.Implementations())
		r.Get("/public/accounts/{account_id}", publicHandlers.Account())

		r.Group(func(r chi.Router) {
			r.Use(AccountAuthMiddleware(d.Records))
			r.Use(BodyCaptureMiddleware(4096))
			r.Get("/account/me", accountHandlers.Me())
			r.Post("/account/provision", accountHandlers.Provision())
			r.Post("/account/withdraw", accountHandlers.Withdraw())
			r.Post("/account/lease", accountHandlers.Lease())
			r.Post("/account/power_user", accountHandlers.ApplyForPowerUser())
			r.Post("/account/historical_data", accountHandlers.RequestHistoricalData())
			r.Post("/account/beneficiary", accountHandlers.DesignateBeneficiary())
			r.Post("/account/leptons", accountHandlers.AddLepton())
			r.Post("/account/rate", accountHandlers.SetRate())
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(d.Config.AdminAPIKey))
			r.Use(BodyCaptureMiddleware(4096))
			r.Post("/params", adminHandlers.UpdateParams())
			r.Post("/masters", adminHandlers.AddMaster())
			r.Delete("/masters/{account_id}", adminHandlers.RemoveMaster())
			r.Post("/rate_setter", adminHandlers.SetRateSetter())
			r.Get("/wallets", adminHandlers.Wallets())
			r.Post("/wallets", adminHandlers.SetWallet())
			r.Post("/pause", adminHandlers.Pause())
			r.Post("/unpause", adminHandlers.Unpause())
			r.Post("/upgrade", adminHandlers.Upgrade())
			r.Post("/terms/update", adminHandlers.UpdateLeaseTerms())
			r.Post("/snapshot", adminHandlers.Snapshot())
			r.Get("/events", adminHandlers.Events())
			r.Get("/ledger", adminHandlers.Ledger())
			r.Post("/mint", adminHandlers.Mint())
			r.Post("/keys", adminHandlers.IssueKey())
			r.Delete("/keys/{account_id}", adminHandlers.RevokeKeys())
			r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 64)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
