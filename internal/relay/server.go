package relay

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"ciphera/internal/domain"
	"ciphera/internal/relaystore"
)

const (
	readHeaderTO   = 5 * time.Second
	readTO         = 10 * time.Second
	writeTO        = 10 * time.Second
	idleTO         = 60 * time.Second
	maxRequestBody = 1 << 20 // 1 MiB cap for incoming JSON bodies
)

// ctxKey namespaces context values set by middleware.
type ctxKey string

const ctxKeyReqID ctxKey = "reqid"

// Server is the relay core: registration, bundle upload/fetch, message
// ingest/queue/dispatch, the /ws streaming subscription, and diagnostics.
type Server struct {
	store *relaystore.Store

	mu   sync.Mutex
	subs map[domain.Username]*subscription

	metricsMu sync.RWMutex
	metrics   *domain.HostMetrics

	startedAt     time.Time
	enableLogging bool
}

// New returns a Server backed by store. enableLogging toggles the access
// log, matching the teacher relay's --log flag.
func New(store *relaystore.Store, enableLogging bool) *Server {
	return &Server{
		store:         store,
		subs:          make(map[domain.Username]*subscription),
		startedAt:     time.Now(),
		enableLogging: enableLogging,
	}
}

// Handler builds the routed, middleware-wrapped http.Handler for this server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/register", s.chain(s.handleRegister))
	mux.HandleFunc("POST /v1/prekeys", s.chain(s.handleUploadBundle))
	mux.HandleFunc("GET /v1/prekeys/{id}", s.chain(s.handleFetchBundle))
	mux.HandleFunc("POST /v1/messages", s.chain(s.handleSendMessage))
	mux.HandleFunc("GET /diagnostics", s.chain(s.handleDiagnostics))
	mux.HandleFunc("POST /diagnostics/metrics", s.chain(s.handleIngestMetrics))
	mux.HandleFunc("GET /health", s.chain(s.handleHealth))
	mux.HandleFunc("GET /ws", s.chain(s.handleWS))

	return mux
}

// --- middleware, adapted from the teacher's cmd/relay/main.go chain ---

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(p []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(p)
	lrw.bytes += n
	return n, err
}

func (s *Server) chain(h http.HandlerFunc) http.HandlerFunc {
	return s.withRecover(s.withReqID(s.withLogging(h)))
}

func (s *Server) withRecover(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				writeErr(w, http.StatusInternalServerError, "internal error")
				if s.enableLogging {
					slog.Error("panic", "err", rec)
				}
			}
		}()
		h(w, r)
	}
}

func (s *Server) withReqID(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = genReqID()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), ctxKeyReqID, id)
		h(w, r.WithContext(ctx))
	}
}

func (s *Server) withLogging(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.enableLogging {
			h(w, r)
			return
		}
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w}
		h(lrw, r)
		slog.Info("access",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", clientIP(r),
			"status", lrw.status,
			"bytes", lrw.bytes,
			"dur", time.Since(start),
			"reqid", requestIDFromCtx(r.Context()),
		)
	}
}

func requestIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyReqID).(string); ok {
		return v
	}
	return ""
}

func genReqID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

func clientIP(r *http.Request) string {
	if xr := r.Header.Get("X-Real-IP"); xr != "" {
		return xr
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// NewHTTPServer returns a *http.Server preconfigured with this relay's
// handler and the teacher's timeout policy.
func NewHTTPServer(addr string, s *Server) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTO,
		ReadTimeout:       readTO,
		WriteTimeout:      writeTO,
		IdleTimeout:       idleTO,
	}
}
