package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/romanzh1/mnemosyne/internal/models"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

type API struct {
	service models.Service
}

// NewRouter builds the JSON API over service.
func NewRouter(service models.Service) http.Handler {
	a := &API{service: service}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", a.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/cards", func(r chi.Router) {
			r.Post("/", a.handleCreateCard)
			r.Get("/", a.handleListCards)
			r.Get("/due", a.handleListDueCards)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.handleGetCard)
				r.Put("/", a.handleUpdateCard)
				r.Delete("/", a.handleDeleteCard)
				r.Post("/review", a.handleReviewCard)
				r.Get("/reviews", a.handleListCardReviews)
			})
		})

		r.Route("/study", func(r chi.Router) {
			r.Post("/sessions", a.handleStartSession)
			r.Get("/sessions/{id}/next-card", a.handleNextCard)
			r.Post("/sessions/{id}/review", a.handleSessionReview)
			r.Put("/sessions/{id}/end", a.handleEndSession)
			r.Get("/stats", a.handleStudyStats)
		})

		r.Route("/calendar", func(r chi.Router) {
			r.Get("/due-count", a.handleDueCount)
			r.Get("/weekly-progress", a.handleWeeklyProgress)
			r.Get("/streak", a.handleStreak)
			r.Get("/heatmap", a.handleHeatmap)
			r.Get("/deck-progress", a.handleDeckProgress)
			r.Get("/upcoming", a.handleUpcoming)
			r.Post("/reminders", a.handleCreateReminder)
			r.Get("/reminders", a.handleListReminders)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var in models.CreateCardInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	card, err := a.service.CreateCard(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (a *API) handleListCards(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, r, err)
		return
	}
	size, err := queryInt(r, "size")
	if err != nil {
		writeError(w, r, err)
		return
	}

	cards, err := a.service.ListCards(r.Context(), page, size, r.URL.Query().Get("deck_name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (a *API) handleListDueCards(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}

	due, err := a.service.ListDueCards(r.Context(), r.URL.Query().Get("deck_name"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, due)
}

func (a *API) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	card, err := a.service.GetCard(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (a *API) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in models.UpdateCardInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	card, err := a.service.UpdateCard(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (a *API) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := a.service.DeleteCard(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleReviewCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in models.ReviewInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	card, err := a.service.ReviewCard(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (a *API) handleListCardReviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	reviews, err := a.service.ListCardReviews(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (a *API) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var in models.StartSessionInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := a.service.StartSession(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.SessionState{StudySession: session})
}

func (a *API) handleNextCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	next, err := a.service.NextCard(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (a *API) handleSessionReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in models.SessionReviewInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := a.service.SubmitSessionReview(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SessionState{StudySession: session})
}

func (a *API) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	session, err := a.service.EndSession(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SessionState{StudySession: session, Complete: true})
}

func (a *API) handleStudyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.GetStudyStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleDueCount(w http.ResponseWriter, r *http.Request) {
	due, err := a.service.GetDueCount(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, due)
}

func (a *API) handleWeeklyProgress(w http.ResponseWriter, r *http.Request) {
	weekly, err := a.service.GetWeeklyProgress(r.Context(), r.URL.Query().Get("start_date"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, weekly)
}

func (a *API) handleStreak(w http.ResponseWriter, r *http.Request) {
	streak, err := a.service.GetStreak(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, streak)
}

func (a *API) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	heatmap, err := a.service.GetHeatmap(r.Context(), r.URL.Query().Get("year_month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, heatmap)
}

func (a *API) handleDeckProgress(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days")
	if err != nil {
		writeError(w, r, err)
		return
	}

	progress, err := a.service.GetDeckProgress(r.Context(), r.URL.Query().Get("deck_name"), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (a *API) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days")
	if err != nil {
		writeError(w, r, err)
		return
	}

	upcoming, err := a.service.GetUpcoming(r.Context(), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, upcoming)
}

func (a *API) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var in models.ReminderInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	reminder, err := a.service.CreateReminder(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reminder)
}

func (a *API) handleListReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := a.service.ListReminders(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reminders)
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, models.NewValidationError("id", "must be a positive integer, got %q", raw)
	}
	return id, nil
}

// queryInt returns 0 when the parameter is absent so the service applies its default.
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.NewValidationError(key, "must be an integer, got %q", raw)
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		// empty body leaves every optional field at its default
		if errors.Is(err, io.EOF) {
			return nil
		}
		return models.NewValidationError("body", "invalid JSON: %v", err)
	}
	return nil
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// writeError maps an error kind to a status code. Internal errors are
// logged and never leaked to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: "validation", Field: ve.Field, Message: ve.Error()}})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{Kind: "not_found", Message: notFoundMessage(err)}})
	default:
		zap.L().Error("handle request", zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{Kind: "internal", Message: "internal server error"}})
	}
}

// notFoundMessage names the missing entity without the wrap chain.
func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrCardNotFound):
		return "card not found"
	case errors.Is(err, models.ErrSessionNotFound):
		return "study session not found"
	default:
		return "not found"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}
