package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/karimzahran/agora/internal/guard"
	"github.com/karimzahran/agora/internal/server/middleware"
)

// GuardStore is the counter backend the admission-control policies run on.
type GuardStore = guard.Store

// routes builds the HTTP surface: the WebSocket endpoint, health and metrics,
// and the internal trigger endpoints the application's services call after a
// content mutation commits.
func (a *App) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestMetadataMiddleware())
	r.Use(middleware.NewRequestLogger(a.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Internal-Token"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(guard.General(a.guardStore, a.logger).Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", a.upgradeHandler)

	r.Route("/internal/notify", func(r chi.Router) {
		r.Use(middleware.RequireInternalToken(a.config.Server.InternalToken, a.logger))
		r.Post("/answer", a.handleNotifyAnswer)
		r.Post("/reply", a.handleNotifyReply)
		r.Post("/best-answer", a.handleNotifyBestAnswer)
		r.Post("/vote-count", a.handleNotifyVoteCount)
		r.Post("/identity", a.handleNotifyIdentity)
	})

	return r
}

// Trigger endpoint bodies. Each maps 1:1 to an event-router trigger.

type notifyAnswerRequest struct {
	DiscussionID string          `json:"discussionId"`
	Answer       json.RawMessage `json:"answer"`
}

type notifyReplyRequest struct {
	DiscussionID string          `json:"discussionId"`
	AnswerID     string          `json:"answerId"`
	Reply        json.RawMessage `json:"reply"`
}

type notifyBestAnswerRequest struct {
	DiscussionID string `json:"discussionId"`
	AnswerID     string `json:"answerId"`
}

type notifyVoteCountRequest struct {
	DiscussionID string `json:"discussionId"`
	TargetID     string `json:"targetId"`
	TargetType   string `json:"targetType"`
	VoteCount    int    `json:"voteCount"`
}

type notifyIdentityRequest struct {
	IdentityID   string          `json:"identityId"`
	Notification json.RawMessage `json:"notification"`
}

func (a *App) handleNotifyAnswer(w http.ResponseWriter, r *http.Request) {
	var req notifyAnswerRequest
	if !decodeTrigger(w, r, &req) || !require(w, req.DiscussionID != "", len(req.Answer) > 0) {
		return
	}
	a.eventRouter.NotifyNewAnswer(req.DiscussionID, req.Answer)
	accepted(w)
}

func (a *App) handleNotifyReply(w http.ResponseWriter, r *http.Request) {
	var req notifyReplyRequest
	if !decodeTrigger(w, r, &req) || !require(w, req.DiscussionID != "", req.AnswerID != "", len(req.Reply) > 0) {
		return
	}
	a.eventRouter.NotifyNewReply(req.DiscussionID, req.AnswerID, req.Reply)
	accepted(w)
}

func (a *App) handleNotifyBestAnswer(w http.ResponseWriter, r *http.Request) {
	var req notifyBestAnswerRequest
	if !decodeTrigger(w, r, &req) || !require(w, req.DiscussionID != "", req.AnswerID != "") {
		return
	}
	a.eventRouter.NotifyBestAnswer(req.DiscussionID, req.AnswerID)
	accepted(w)
}

func (a *App) handleNotifyVoteCount(w http.ResponseWriter, r *http.Request) {
	var req notifyVoteCountRequest
	if !decodeTrigger(w, r, &req) || !require(w, req.DiscussionID != "", req.TargetID != "", req.TargetType != "") {
		return
	}
	a.eventRouter.NotifyVoteCount(req.DiscussionID, req.TargetID, req.TargetType, req.VoteCount)
	accepted(w)
}

func (a *App) handleNotifyIdentity(w http.ResponseWriter, r *http.Request) {
	var req notifyIdentityRequest
	if !decodeTrigger(w, r, &req) || !require(w, req.IdentityID != "", len(req.Notification) > 0) {
		return
	}
	a.eventRouter.NotifyIdentity(req.IdentityID, req.Notification)
	accepted(w)
}

func decodeTrigger(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(dst); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return false
	}
	return true
}

func require(w http.ResponseWriter, conds ...bool) bool {
	for _, ok := range conds {
		if !ok {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return false
		}
	}
	return true
}

func accepted(w http.ResponseWriter) {
	w.WriteHeader(http.StatusAccepted)
}
