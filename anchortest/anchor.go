// Package anchortest runs a scriptable in-process Stellar anchor for tests.
//
// The anchor publishes a stellar.toml, performs SEP-10 authentication with a
// random signing key, and serves SEP-6, SEP-24, SEP-12 and SEP-38 endpoints
// backed by in-memory state that tests can seed and mutate between polls.
package anchortest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	supporthttp "github.com/stellar/go/support/http"
	"github.com/stellar/go/support/log"
	"github.com/stellar/go/support/render/httpjson"

	"github.com/marwen-abid/wallet-sdk-go/core/toml"
)

// Anchor is a running fake anchor. Close it when done.
type Anchor struct {
	server            *httptest.Server
	signingKey        *keypair.Full
	uriSigningKey     *keypair.Full
	networkPassphrase string
	jwtSecret         []byte
	jwtTTL            time.Duration
	currencies        []toml.CurrencyInfo
	clientDomains     map[string]string

	nonces    *nonceStore
	txs       *transactionStore
	customers *customerStore
	quotes    *quoteStore

	mu       sync.Mutex
	scripted map[string][]scriptedResponse
	requests map[string][]url.Values
}

type scriptedResponse struct {
	status int
	body   string
}

// Option configures an Anchor.
type Option func(*Anchor)

// WithNetworkPassphrase sets the network the anchor signs challenges for.
// Defaults to the test network.
func WithNetworkPassphrase(passphrase string) Option {
	return func(a *Anchor) {
		a.networkPassphrase = passphrase
	}
}

// WithJWTTTL sets the lifetime of issued tokens (default: 1h).
func WithJWTTTL(d time.Duration) Option {
	return func(a *Anchor) {
		a.jwtTTL = d
	}
}

// WithCurrency publishes an asset in stellar.toml and enables it for transfers.
func WithCurrency(code, issuer string) Option {
	return func(a *Anchor) {
		a.currencies = append(a.currencies, toml.CurrencyInfo{Code: code, Issuer: issuer, Status: "test"})
	}
}

// WithClientDomain lets the anchor accept client_domain challenges for
// domain, co-signed by signingKey.
func WithClientDomain(domain, signingKey string) Option {
	return func(a *Anchor) {
		a.clientDomains[domain] = signingKey
	}
}

// New starts an anchor on a local httptest server.
func New(opts ...Option) *Anchor {
	a := &Anchor{
		signingKey:        keypair.MustRandom(),
		uriSigningKey:     keypair.MustRandom(),
		networkPassphrase: network.TestNetworkPassphrase,
		jwtSecret:         []byte(keypair.MustRandom().Seed()),
		jwtTTL:            time.Hour,
		clientDomains:     map[string]string{},
		nonces:            newNonceStore(),
		txs:               newTransactionStore(),
		customers:         newCustomerStore(),
		quotes:            newQuoteStore(),
		scripted:          map[string][]scriptedResponse{},
		requests:          map[string][]url.Values{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if len(a.currencies) == 0 {
		a.currencies = []toml.CurrencyInfo{{Code: "USDC", Issuer: keypair.MustRandom().Address(), Status: "test"}}
	}

	a.server = httptest.NewServer(a.routes())
	return a
}

// Close shuts the server down.
func (a *Anchor) Close() {
	a.server.Close()
}

// URL returns the server base URL (http://127.0.0.1:port).
func (a *Anchor) URL() string {
	return a.server.URL
}

// Domain returns the anchor's home domain (host:port).
func (a *Anchor) Domain() string {
	return strings.TrimPrefix(a.server.URL, "http://")
}

// SigningKey returns the SEP-10 signing key published as SIGNING_KEY.
func (a *Anchor) SigningKey() *keypair.Full {
	return a.signingKey
}

// URIRequestSigningKey returns the key published as URI_REQUEST_SIGNING_KEY.
func (a *Anchor) URIRequestSigningKey() *keypair.Full {
	return a.uriSigningKey
}

// NetworkPassphrase returns the network the anchor operates on.
func (a *Anchor) NetworkPassphrase() string {
	return a.networkPassphrase
}

// Respond queues a verbatim response for the next request to path, taking
// precedence over the regular handler. Queued responses are served in order.
func (a *Anchor) Respond(path string, status int, body string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scripted[path] = append(a.scripted[path], scriptedResponse{status: status, body: body})
}

// Requests returns the query parameters of every request served for path.
func (a *Anchor) Requests(path string) []url.Values {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]url.Values, len(a.requests[path]))
	copy(out, a.requests[path])
	return out
}

func (a *Anchor) routes() http.Handler {
	mux := supporthttp.NewAPIMux(log.DefaultLogger)
	mux.Use(a.recordRequests, a.serveScripted)

	mux.Get("/.well-known/stellar.toml", a.handleTOML)

	mux.Get("/auth", a.handleChallenge)
	mux.Post("/auth", a.handleToken)

	mux.Route("/sep24", func(r chi.Router) {
		r.Get("/info", a.handleInfo)
		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)
			r.Post("/transactions/deposit/interactive", a.handleInteractive("deposit"))
			r.Post("/transactions/withdraw/interactive", a.handleInteractive("withdrawal"))
			r.Get("/transactions", a.handleTransactions)
			r.Get("/transaction", a.handleTransaction)
		})
	})

	mux.Route("/sep6", func(r chi.Router) {
		r.Get("/info", a.handleInfo)
		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)
			r.Get("/deposit", a.handleSep6Deposit)
			r.Get("/withdraw", a.handleSep6Withdraw)
			r.Get("/transactions", a.handleTransactions)
			r.Get("/transaction", a.handleTransaction)
		})
	})

	mux.Route("/kyc", func(r chi.Router) {
		r.Use(a.requireAuth)
		r.Get("/customer", a.handleGetCustomer)
		r.Put("/customer", a.handlePutCustomer)
		r.Delete("/customer/{account}", a.handleDeleteCustomer)
	})

	mux.Route("/sep38", func(r chi.Router) {
		r.Get("/info", a.handleQuoteInfo)
		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)
			r.Get("/prices", a.handlePrices)
			r.Get("/price", a.handlePrice)
			r.Post("/quote", a.handlePostQuote)
			r.Get("/quote/{id}", a.handleGetQuote)
		})
	})

	return mux
}

func (a *Anchor) recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.requests[r.URL.Path] = append(a.requests[r.URL.Path], r.URL.Query())
		a.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (a *Anchor) serveScripted(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		queue := a.scripted[r.URL.Path]
		var resp *scriptedResponse
		if len(queue) > 0 {
			resp = &queue[0]
			a.scripted[r.URL.Path] = queue[1:]
		}
		a.mu.Unlock()

		if resp == nil {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		w.Write([]byte(resp.body))
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func renderError(w http.ResponseWriter, status int, msg string) {
	httpjson.RenderStatus(w, status, errorResponse{Error: msg}, httpjson.JSON)
}

func renderJSON(w http.ResponseWriter, status int, v any) {
	httpjson.RenderStatus(w, status, v, httpjson.JSON)
}
