package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"coffeeshop/internal/auth"
	"coffeeshop/internal/core"
	"coffeeshop/internal/modules/drinks"
	"coffeeshop/internal/modules/host"
	"coffeeshop/internal/storage"
)

type contextKey string

const (
	ctxRequestID contextKey = "request_id"
	ctxSubject   contextKey = "subject"
	ctxInfo      contextKey = "request_info"
)

// Authenticator проверяет заголовок Authorization и возвращает субъекта.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (core.Subject, error)
}

// HostProbe отдает состояние узла для /health.
type HostProbe interface {
	Status(ctx context.Context) (host.Status, error)
}

// Config определяет параметры HTTP-транспорта.
type Config struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	MaxRequestBody  int64
	RateLimitRPS    float64
	RateLimitBurst  int
}

// Adapter реализует REST API напитков поверх net/http и gorilla/mux.
type Adapter struct {
	drinks     *drinks.Service
	authn      Authenticator
	authorizer core.Authorizer
	store      storage.Store
	probe      HostProbe
	logger     *slog.Logger
	limiter    *keyedLimiter
	cfg        Config

	mu     sync.Mutex
	server *http.Server
}

// NewAdapter создает web transport.
func NewAdapter(svc *drinks.Service, authn Authenticator, authorizer core.Authorizer, store storage.Store, probe HostProbe, logger *slog.Logger, cfg Config) *Adapter {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:8080"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 2 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 3 * time.Second
	}
	if cfg.MaxRequestBody <= 0 {
		cfg.MaxRequestBody = 1 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		drinks:     svc,
		authn:      authn,
		authorizer: authorizer,
		store:      store,
		probe:      probe,
		logger:     logger,
		limiter:    newKeyedLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		cfg:        cfg,
	}
}

func (a *Adapter) Name() string { return "web" }

// Handler возвращает корневой обработчик со всеми маршрутами.
func (a *Adapter) Handler() http.Handler { return a.routes() }

// Start открывает listener и обслуживает запросы до отмены контекста.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.server != nil {
		a.mu.Unlock()
		return errors.New("web transport already started")
	}
	ln, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		a.mu.Unlock()
		return fmt.Errorf("listen %s: %w", a.cfg.ListenAddr, err)
	}
	srv := &http.Server{
		Handler:      a.routes(),
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(a.logger.Handler(), slog.LevelWarn),
	}
	a.server = srv
	a.mu.Unlock()

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		_ = a.Stop(stopCtx)
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("web transport stopped", "err", err)
		}
	}()
	a.logger.Info("web transport listening", "addr", ln.Addr().String())
	return nil
}

// Stop завершает HTTP server.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.server
	a.server = nil
	a.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type middleware func(http.Handler) http.Handler

func chain(h http.Handler, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func (a *Adapter) routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed)
	})

	r.Handle("/health", chain(http.HandlerFunc(a.handleHealth), a.timeoutMiddleware())).Methods(http.MethodGet)

	r.Handle("/drinks", a.protected(core.PermGetDrinks, a.handleListDrinks)).Methods(http.MethodGet)
	r.Handle("/drinks-detail", a.protected(core.PermGetDrinksDetail, a.handleListDrinksDetail)).Methods(http.MethodGet)
	r.Handle("/drinks", a.protected(core.PermPostDrinks, a.handleCreateDrink)).Methods(http.MethodPost)
	r.Handle("/drinks/{id:[0-9]+}", a.protected(core.PermPatchDrinks, a.handleUpdateDrink)).Methods(http.MethodPatch)
	r.Handle("/drinks/{id:[0-9]+}", a.protected(core.PermDeleteDrinks, a.handleDeleteDrink)).Methods(http.MethodDelete)

	return chain(r, a.requestIDMiddleware(), a.accessLogMiddleware())
}

// protected оборачивает обработчик проверкой токена и разрешения.
func (a *Adapter) protected(perm core.Permission, h http.HandlerFunc) http.Handler {
	return chain(h,
		a.timeoutMiddleware(),
		a.authSubjectMiddleware(),
		a.requirePermissionMiddleware(perm),
		a.rateLimitMiddleware(),
		a.maxBodyMiddleware(),
	)
}

// requestInfo заполняется внутренними middleware и читается access log.
type requestInfo struct {
	subject string
}

func (a *Adapter) requestIDMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := sanitizeRequestID(r.Header.Get("X-Request-ID"))
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)
			ctx := context.WithValue(r.Context(), ctxRequestID, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *Adapter) accessLogMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			info := &requestInfo{}
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), ctxInfo, info)))
			a.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
				"request_id", requestIDFromContext(r.Context()),
				"subject", info.subject,
			)
		})
	}
}

func (a *Adapter) timeoutMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), a.cfg.RequestTimeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Adapter) authSubjectMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := a.authn.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				if ctxErr := r.Context().Err(); ctxErr != nil {
					a.writeFailure(w, r, "authenticate", ctxErr)
					return
				}
				status, code, description := authErrorResponse(err)
				a.logger.Debug("authentication failed", "request_id", requestIDFromContext(r.Context()), "err", err)
				writeAuthError(w, r, status, code, description)
				return
			}
			if info, ok := r.Context().Value(ctxInfo).(*requestInfo); ok {
				info.subject = subject.ID
			}
			ctx := context.WithValue(r.Context(), ctxSubject, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Adapter) requirePermissionMiddleware(perm core.Permission) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := subjectFromContext(r.Context())
			if !ok {
				writeAuthError(w, r, http.StatusUnauthorized, auth.CodeHeaderMissing, "Authorization header is expected.")
				return
			}
			if err := a.authorizer.Authorize(subject, perm); err != nil {
				status, code, description := authErrorResponse(err)
				a.logger.Warn("permission denied",
					"permission", string(perm),
					"subject", subject.ID,
					"code", code,
					"request_id", requestIDFromContext(r.Context()),
				)
				writeAuthError(w, r, status, code, description)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Adapter) rateLimitMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		if a.limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, _ := subjectFromContext(r.Context())
			if !a.limiter.Allow(subject.ID, time.Now()) {
				writeError(w, r, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Adapter) maxBodyMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxRequestBody)
			next.ServeHTTP(w, r)
		})
	}
}

func sanitizeRequestID(v string) string {
	id := v
	if id == "" || len(id) > 64 {
		return ""
	}
	for _, ch := range id {
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			continue
		}
		switch ch {
		case '-', '_', '.', ':':
			continue
		default:
			return ""
		}
	}
	return id
}

func requestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}

func subjectFromContext(ctx context.Context) (core.Subject, bool) {
	v, ok := ctx.Value(ctxSubject).(core.Subject)
	return v, ok
}

func (a *Adapter) writeAudit(ctx context.Context, action, status string, payload interface{}) {
	if a.store == nil {
		return
	}
	var rawPayload []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			a.logger.Warn("marshal audit payload", "err", err)
			return
		}
		rawPayload = data
	}
	subject, _ := subjectFromContext(ctx)
	// Аудит пишется и после истечения таймаута запроса.
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	err := a.store.SaveAudit(auditCtx, storage.AuditEvent{
		Subject:   subject.ID,
		Action:    action,
		Source:    "web",
		Status:    status,
		RequestID: requestIDFromContext(ctx),
		Payload:   rawPayload,
	})
	if err != nil {
		a.logger.Warn("write audit", "action", action, "err", err)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if id := requestIDFromContext(r.Context()); id != "" {
		w.Header().Set("X-Request-ID", id)
	}
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
