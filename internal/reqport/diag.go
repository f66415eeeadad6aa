package reqport

// diag.go assembles the diagnostics HTTP side-channel named in
// SPEC_FULL §4.F: a router distinct from the PDU ports (it never sees
// PDU traffic) exposing the §4.B counters as JSON, the trace ring as a
// live websocket feed, and Prometheus metrics. Grounded on cmd/cc-backend/server.go's mux+handlers router
// assembly.

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/pmcore/pmcore/pkg/log"
	"github.com/pmcore/pmcore/pkg/pdu/diag"
)

// DiagConfig configures the diagnostics HTTP server.
type DiagConfig struct {
	Addr string

	// SessionSecret seeds the cookie store; a random key is generated
	// via securecookie if left empty.
	SessionSecret []byte

	// RequireSession gates /diag/counters and /diag/trace behind a
	// session cookie previously set by the embedding application (e.g.
	// after its own admin login); when false those routes are open.
	// /metrics and /diag/openapi/ are never gated.
	RequireSession bool
}

// DiagServer is the HTTP side-channel itself.
type DiagServer struct {
	srv            *http.Server
	store          *sessions.CookieStore
	upgrader       websocket.Upgrader
	requireSession bool
}

func NewDiagServer(cfg DiagConfig) *DiagServer {
	secret := cfg.SessionSecret
	if len(secret) == 0 {
		secret = securecookie.GenerateRandomKey(32)
	}

	d := &DiagServer{
		store:          sessions.NewCookieStore(secret),
		upgrader:       websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		requireSession: cfg.RequireSession,
	}

	registry := prometheus.NewRegistry()
	for _, c := range diag.Registerer() {
		registry.MustRegister(c)
	}
	registry.MustRegister(version.NewCollector("pmcore"))

	r := mux.NewRouter()
	r.HandleFunc("/diag/counters", d.handleCounters).Methods(http.MethodGet)
	r.HandleFunc("/diag/trace", d.handleTraceFeed)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.PathPrefix("/diag/openapi/").Handler(httpSwagger.WrapHandler)

	chain := handlers.CORS()(handlers.RecoveryHandler()(handlers.CombinedLoggingHandler(log.InfoWriter, r)))
	d.srv = &http.Server{Addr: cfg.Addr, Handler: chain, ReadHeaderTimeout: 5 * time.Second}
	return d
}

func (d *DiagServer) authorize(w http.ResponseWriter, r *http.Request) bool {
	if !d.requireSession {
		return true
	}
	sess, err := d.store.Get(r, "pmcore-diag")
	if err != nil || sess.Values["admitted"] != true {
		http.Error(w, "diagnostics session required", http.StatusUnauthorized)
		return false
	}
	return true
}

func (d *DiagServer) handleCounters(w http.ResponseWriter, r *http.Request) {
	if !d.authorize(w, r) {
		return
	}
	in, out := diag.Counters()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		In  map[int32]uint64 `json:"in"`
		Out map[int32]uint64 `json:"out"`
	}{in, out})
}

// handleTraceFeed streams the trace ring over a websocket once per
// second, supplementing the plain JSON counters with a push feed.
func (d *DiagServer) handleTraceFeed(w http.ResponseWriter, r *http.Request) {
	if !d.authorize(w, r) {
		return
	}
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("reqport: trace feed upgrade: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if err := conn.WriteJSON(diag.Trace()); err != nil {
			return
		}
	}
}

func (d *DiagServer) ListenAndServe() error { return d.srv.ListenAndServe() }
func (d *DiagServer) Close() error          { return d.srv.Close() }
