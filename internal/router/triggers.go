package router

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/karimzahran/agora/pkg/state"
)

// Trigger API: the content, voting, and notification subsystems call these
// after a mutation commits. Triggers reach every member of the target room,
// including other sessions owned by the identity that caused the mutation.

// NotifyNewAnswer relays a freshly created answer to a discussion's members.
func (r *EventRouter) NotifyNewAnswer(discussionID string, answer json.RawMessage) {
	r.Broadcast(state.DiscussionRoom(discussionID), EvNewAnswer, answer, uuid.Nil)
}

// NotifyNewReply relays a reply nested under an existing answer.
func (r *EventRouter) NotifyNewReply(discussionID, answerID string, reply json.RawMessage) {
	r.Broadcast(state.DiscussionRoom(discussionID), EvNewReply, replyPayload{
		AnswerID: answerID,
		Reply:    reply,
	}, uuid.Nil)
}

// NotifyBestAnswer announces that an answer was marked as the best one.
func (r *EventRouter) NotifyBestAnswer(discussionID, answerID string) {
	r.Broadcast(state.DiscussionRoom(discussionID), EvBestAnswerMarked, bestAnswerPayload{
		AnswerID: answerID,
	}, uuid.Nil)
}

// NotifyVoteCount publishes a target's new aggregate vote count.
func (r *EventRouter) NotifyVoteCount(discussionID, targetID, targetType string, voteCount int) {
	r.Broadcast(state.DiscussionRoom(discussionID), EvVoteCountUpdated, voteCountPayload{
		TargetID:   targetID,
		TargetType: targetType,
		VoteCount:  voteCount,
	}, uuid.Nil)
}

// NotifyIdentity delivers a notification to every session the identity has
// open, via its identity-scoped room.
func (r *EventRouter) NotifyIdentity(identityID string, notification json.RawMessage) {
	r.Broadcast(state.IdentityRoom(identityID), EvNewNotification, notification, uuid.Nil)
}
