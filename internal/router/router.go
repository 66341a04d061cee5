// Package router maps inbound client events and external triggers to
// room-scoped fan-outs. Events with missing addressing fields are dropped
// without surfacing an error to the sender.
package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/karimzahran/agora/internal/metrics"
	"github.com/karimzahran/agora/pkg/state"
)

// handlerFunc executes one inbound event kind. Adding an event kind means
// adding one handler plus its entry in the dispatch table.
type handlerFunc func(r *EventRouter, sess *state.Session, payload gjson.Result)

var handlers = map[string]handlerFunc{
	EvJoinDiscussion:  handleJoinDiscussion,
	EvLeaveDiscussion: handleLeaveDiscussion,
	EvTypingStart:     handleTypingStart,
	EvTypingStop:      handleTypingStop,
	EvVoteUpdate:      handleVoteUpdate,
	EvTest:            handleTest,
}

type EventRouter struct {
	logger   *slog.Logger
	registry state.Registry
}

func NewEventRouter(logger *slog.Logger, registry state.Registry) *EventRouter {
	return &EventRouter{
		logger:   logger.With(slog.String("component", "event_router")),
		registry: registry,
	}
}

// HandleMessage is the transport's message callback. It validates the
// envelope, enforces the session's inbound budget, and dispatches. Malformed
// or unknown events never crash the connection; they are logged and dropped.
func (r *EventRouter) HandleMessage(_ context.Context, sessID uuid.UUID, msg []byte) {
	sess, ok := r.registry.Get(sessID)
	if !ok {
		// the session raced its own disconnect; nothing to do
		return
	}
	if !sess.AllowEvent() {
		metrics.EventsDropped.WithLabelValues("over_rate").Inc()
		r.logger.Warn("session over inbound event budget, dropping",
			slog.String("sessID", sessID.String()))
		return
	}

	if !gjson.ValidBytes(msg) {
		metrics.EventsDropped.WithLabelValues("malformed").Inc()
		r.logger.Debug("dropping malformed message", slog.String("sessID", sessID.String()))
		return
	}
	event := gjson.GetBytes(msg, "event").String()
	handler, ok := handlers[event]
	if !ok {
		metrics.EventsDropped.WithLabelValues("unknown").Inc()
		r.logger.Debug("dropping unknown event",
			slog.String("event", event), slog.String("sessID", sessID.String()))
		return
	}

	metrics.EventsRouted.WithLabelValues(event).Inc()
	handler(r, sess, gjson.GetBytes(msg, "payload"))
}

func handleJoinDiscussion(r *EventRouter, sess *state.Session, payload gjson.Result) {
	discussionID := payload.Get("discussionId").String()
	if discussionID == "" {
		r.dropMalformed(EvJoinDiscussion, sess)
		return
	}
	if err := r.registry.Join(sess.ID, state.DiscussionRoom(discussionID)); err != nil {
		r.logger.Warn("join failed", slog.String("sessID", sess.ID.String()), slog.Any("error", err))
	}
}

func handleLeaveDiscussion(r *EventRouter, sess *state.Session, payload gjson.Result) {
	discussionID := payload.Get("discussionId").String()
	if discussionID == "" {
		r.dropMalformed(EvLeaveDiscussion, sess)
		return
	}
	if err := r.registry.Leave(sess.ID, state.DiscussionRoom(discussionID)); err != nil {
		r.logger.Warn("leave failed", slog.String("sessID", sess.ID.String()), slog.Any("error", err))
	}
}

func handleTypingStart(r *EventRouter, sess *state.Session, payload gjson.Result) {
	discussionID := payload.Get("discussionId").String()
	if discussionID == "" {
		r.dropMalformed(EvTypingStart, sess)
		return
	}
	r.Broadcast(state.DiscussionRoom(discussionID), EvUserTyping, typingPayload{
		UserID:   sess.Identity().ID,
		Username: sess.Identity().Username,
		Type:     payload.Get("type").String(),
	}, sess.ID)
}

func handleTypingStop(r *EventRouter, sess *state.Session, payload gjson.Result) {
	discussionID := payload.Get("discussionId").String()
	if discussionID == "" {
		r.dropMalformed(EvTypingStop, sess)
		return
	}
	r.Broadcast(state.DiscussionRoom(discussionID), EvUserStopTyping, stopTypingPayload{
		UserID: sess.Identity().ID,
	}, sess.ID)
}

func handleVoteUpdate(r *EventRouter, sess *state.Session, payload gjson.Result) {
	discussionID := payload.Get("discussionId").String()
	targetID := payload.Get("targetId").String()
	targetType := payload.Get("targetType").String()
	voteType := payload.Get("voteType").String()
	if discussionID == "" || targetID == "" || targetType == "" || voteType == "" {
		r.dropMalformed(EvVoteUpdate, sess)
		return
	}
	r.Broadcast(state.DiscussionRoom(discussionID), EvVoteUpdated, votePayload{
		TargetID:   targetID,
		TargetType: targetType,
		VoteType:   voteType,
		UserID:     sess.Identity().ID,
	}, sess.ID)
}

// handleTest echoes a greeting back to the originator only. Clients use it
// as a connectivity self-check.
func handleTest(r *EventRouter, sess *state.Session, _ gjson.Result) {
	msg, err := encode(EvTest, testReplyPayload{
		Message:   "Hello back from server, " + sess.Identity().Username + "!",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	sess.Send(msg)
	metrics.FanoutSends.Inc()
}

func (r *EventRouter) dropMalformed(event string, sess *state.Session) {
	metrics.EventsDropped.WithLabelValues("malformed").Inc()
	r.logger.Debug("dropping event with missing required fields",
		slog.String("event", event), slog.String("sessID", sess.ID.String()))
}

// Broadcast fans an event out to the room's current members. exclude, when
// not uuid.Nil, names the originating session, which does not receive its
// own echo. Each send is fire-and-forget; a slow recipient only loses its
// own messages.
func (r *EventRouter) Broadcast(room, event string, payload any, exclude uuid.UUID) {
	msg, err := encode(event, payload)
	if err != nil {
		r.logger.Error("failed to marshal outbound event",
			slog.String("event", event), slog.Any("error", err))
		return
	}

	members := r.registry.MembersOf(room)
	sent := 0
	for _, member := range members {
		if member.ID == exclude {
			continue
		}
		member.Send(msg)
		sent++
	}
	metrics.FanoutSends.Add(float64(sent))

	r.logger.Debug("broadcast delivered",
		slog.String("room", room),
		slog.String("event", event),
		slog.Int("recipients", sent),
	)
}

func encode(event string, payload any) ([]byte, error) {
	return json.Marshal(ServerMessage{Event: event, Payload: payload})
}
