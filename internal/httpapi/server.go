// Package httpapi exposes the browse controller over HTTP, with
// children-changed notifications delivered as Server-Sent Events.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmcdole/tuner/internal/domain"
)

// SubscriberHeader carries the subscriber handle on every browse request.
// Event streams may pass it as the "subscriber" query parameter instead,
// since EventSource clients cannot set headers.
const SubscriberHeader = "X-Subscriber-ID"

const (
	keepAliveInterval = 15 * time.Second
	defaultRecent     = 50
)

// Browser is the inbound browsing protocol served over HTTP
type Browser interface {
	Subscribe(ctx context.Context, sub domain.Subscriber, parentID string) error
	Unsubscribe(ctx context.Context, sub domain.Subscriber, parentID string) error
	LibraryRoot(ctx context.Context, sub domain.Subscriber) (domain.Node, error)
	Children(ctx context.Context, sub domain.Subscriber, parentID string, page, pageSize int) ([]domain.Node, error)
	Item(ctx context.Context, sub domain.Subscriber, id string) (domain.Node, error)
	Search(ctx context.Context, sub domain.Subscriber, query string) ([]domain.Node, error)
}

// Options configures the router
type Options struct {
	RateLimit int                        // Requests per minute per IP, 0 disables
	Journal   domain.NotificationJournal // Optional; enables /v1/notifications
	Logger    *slog.Logger
}

type server struct {
	browser Browser
	hub     *EventHub
	journal domain.NotificationJournal
	logger  *slog.Logger
}

// NewRouter builds the HTTP handler
func NewRouter(browser Browser, hub *EventHub, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{browser: browser, hub: hub, journal: opts.Journal, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(rateLimit(opts.RateLimit, time.Minute))
		}
		r.Use(requireSubscriber)

		r.Get("/library/root", s.handleRoot)
		r.Get("/library/children/{parentID}", s.handleChildren)
		r.Get("/library/items/{id}", s.handleItem)
		r.Get("/library/search", s.handleSearch)
		r.Put("/subscriptions/{parentID}", s.handleSubscribe)
		r.Delete("/subscriptions/{parentID}", s.handleUnsubscribe)
		r.Get("/events", s.handleEvents)
		r.Get("/notifications", s.handleNotifications)
	})

	return r
}

type ctxKey struct{}

func requireSubscriber(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SubscriberHeader)
		if id == "" {
			id = r.URL.Query().Get("subscriber")
		}
		if id == "" {
			writeError(w, http.StatusBadRequest, "missing_subscriber", SubscriberHeader+" header is required")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, domain.SubscriberID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func subscriberFrom(r *http.Request) domain.SubscriberID {
	sub, _ := r.Context().Value(ctxKey{}).(domain.SubscriberID)
	return sub
}

func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests. Please try again later.")
		}),
	)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"requestID", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	root, err := s.browser.LibraryRoot(r.Context(), subscriberFrom(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, root)
}

type childrenResponse struct {
	ParentID string        `json:"parentId"`
	Items    []domain.Node `json:"items"`
}

func (s *server) handleChildren(w http.ResponseWriter, r *http.Request) {
	parentID := chi.URLParam(r, "parentID")
	page, err := intParam(r, "page")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_page", err.Error())
		return
	}
	pageSize, err := intParam(r, "pageSize")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_page_size", err.Error())
		return
	}

	items, err := s.browser.Children(r.Context(), subscriberFrom(r), parentID, page, pageSize)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, childrenResponse{ParentID: parentID, Items: items})
}

func (s *server) handleItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.browser.Item(r.Context(), subscriberFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type searchResponse struct {
	Query string        `json:"query"`
	Items []domain.Node `json:"items"`
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	items, err := s.browser.Search(r.Context(), subscriberFrom(r), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if items == nil {
		items = []domain.Node{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: q, Items: items})
}

func (s *server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if err := s.browser.Subscribe(r.Context(), subscriberFrom(r), chi.URLParam(r, "parentID")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if err := s.browser.Unsubscribe(r.Context(), subscriberFrom(r), chi.URLParam(r, "parentID")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusOK, []domain.NotificationRecord{})
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_limit", err.Error())
		return
	}
	if limit <= 0 {
		limit = defaultRecent
	}
	recs, err := s.journal.Recent(limit)
	if err != nil {
		s.logger.Error("failed to read journal", "error", err)
		writeError(w, http.StatusInternalServerError, "journal_unavailable", "could not read notification journal")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleEvents streams children-changed notifications as Server-Sent Events
func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer cannot flush")
		return
	}

	sub := subscriberFrom(r)
	stream, err := s.hub.Open(sub.ID())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "shutting_down", err.Error())
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	s.logger.Debug("event stream opened", "subscriber", sub.ID())
	defer s.logger.Debug("event stream closed", "subscriber", sub.ID())

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-stream.C():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("failed to encode event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: children_changed\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownParent):
		writeError(w, http.StatusNotFound, "unknown_parent", err.Error())
	case errors.Is(err, domain.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		s.logger.Error("browse call failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, errorResponse{Error: code, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
