package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"timer-powerup/internal/domain"
	"timer-powerup/internal/usecase"
)

// maxBodyBytes bounds request bodies; card snapshots are small.
const maxBodyBytes = 1 << 20

type cardRequest struct {
	Card domain.Card       `json:"card"`
	User *domain.BoardUser `json:"user,omitempty"`
}

// HTTPServer returns a configured http.Server serving the power-up backend.
// Call ListenAndServe on the returned server in a goroutine and Shutdown it on exit.
func (a *App) HTTPServer(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.log.Info("http server configured", slog.String("addr", addr))
	return srv
}

// Handler returns the router with all routes mounted.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler { return loggingMiddleware(a.log, next) })

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/card-badges", a.handleCardBadges)
		r.Post("/card-buttons", a.handleCardButtons)
		r.Post("/timer-status", a.handleTimerStatus)
		r.Get("/timers/current", a.handleCurrentTimer)

		r.Post("/timers/start", a.handleStartTimer)
		r.Post("/timers/stop", a.handleStopTimer)
		r.Post("/checklists/convert", a.handleConvertChecklists)

		r.Get("/categories", a.handleCategories)
		r.Post("/projects", a.handleProjects)
		r.Get("/tasks", a.handleTasks)
		r.Post("/directory/refresh", a.handleDirectoryRefresh)
	})
	return r
}

func (a *App) handleCardBadges(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if !decode(w, r, &req) {
		return
	}
	badges := []domain.Badge{}
	if b := a.check.Badge(r.Context(), req.Card, req.User); b != nil {
		badges = append(badges, *b)
	}
	writeJSON(w, http.StatusOK, map[string]any{"badges": badges})
}

func (a *App) handleCardButtons(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"buttons": a.check.Buttons(r.Context(), req.Card, req.User)})
}

func (a *App) handleTimerStatus(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if !decode(w, r, &req) {
		return
	}
	status := a.check.Check(r.Context(), req.Card, req.Card.ClientLabel(), req.User)
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}

func (a *App) handleCurrentTimer(w http.ResponseWriter, r *http.Request) {
	user := userFromQuery(r)
	writeJSON(w, http.StatusOK, map[string]any{"timer": a.check.CurrentTimer(r.Context(), user)})
}

func (a *App) handleStartTimer(w http.ResponseWriter, r *http.Request) {
	var req usecase.StartTimerRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := a.actions.StartTimer(r.Context(), req)
	a.writeActionResult(w, r, domain.ActionStartTimer, res, err)
}

func (a *App) handleStopTimer(w http.ResponseWriter, r *http.Request) {
	var req usecase.StopTimerRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := a.actions.StopTimer(r.Context(), req)
	a.writeActionResult(w, r, domain.ActionStopTimer, res, err)
}

func (a *App) handleConvertChecklists(w http.ResponseWriter, r *http.Request) {
	var req usecase.ConvertChecklistsRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := a.actions.ConvertChecklists(r.Context(), req)
	a.writeActionResult(w, r, domain.ActionCreateChildCards, res, err)
}

func (a *App) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.popup.CategoryOptions(userFromQuery(r)))
}

func (a *App) handleProjects(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, a.popup.ProjectOptions(r.Context(), req.Card.ClientLabel(), req.Card))
}

func (a *App) handleTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tasks": a.popup.TaskOptions(r.Context())})
}

func (a *App) handleDirectoryRefresh(w http.ResponseWriter, r *http.Request) {
	a.RefreshDirectory(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"accounts": a.directory.Accounts.Len(),
		"projects": a.directory.Projects.Len(),
		"tasks":    a.directory.Tasks.Len(),
	})
}

// writeActionResult maps use case errors to status codes and user-facing messages.
func (a *App) writeActionResult(w http.ResponseWriter, r *http.Request, action domain.WebhookAction, res usecase.ActionResult, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "message": res.Message, "requestId": res.RequestID})
		return
	}

	status, msg := http.StatusInternalServerError, usecase.FailureMessage(action)
	switch {
	case usecase.IsValidation(err):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, usecase.ErrUserNotMapped):
		status, msg = http.StatusUnprocessableEntity, usecase.UserNotMappedMessage
	case errors.Is(err, usecase.ErrDeliveryFailed):
		status = http.StatusBadGateway
	}
	a.log.Warn("action failed",
		slog.String("action", string(action)),
		slog.Int("status", status),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("error", err.Error()),
	)
	writeJSON(w, status, map[string]any{"status": "error", "error": msg})
}

func userFromQuery(r *http.Request) domain.BoardUser {
	q := r.URL.Query()
	return domain.BoardUser{
		ID:       q.Get("userId"),
		Username: q.Get("username"),
		Email:    q.Get("email"),
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// loggingMiddleware provides basic request logging.
func loggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("remote", r.RemoteAddr),
			slog.Duration("dur", time.Since(start)),
		)
	})
}
