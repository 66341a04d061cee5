package router

import "encoding/json"

// ServerMessage is the outbound wire envelope. The inbound envelope has the
// same {event, payload} shape; HandleMessage reads it field-by-field with
// gjson rather than unmarshalling.
type ServerMessage struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Inbound event names.
const (
	EvJoinDiscussion  = "join_discussion"
	EvLeaveDiscussion = "leave_discussion"
	EvTypingStart     = "typing_start"
	EvTypingStop      = "typing_stop"
	EvVoteUpdate      = "vote_update"
	EvTest            = "test_event"
)

// Outbound event names.
const (
	EvUserTyping       = "user_typing"
	EvUserStopTyping   = "user_stop_typing"
	EvVoteUpdated      = "vote_updated"
	EvNewAnswer        = "new_answer"
	EvNewReply         = "new_reply"
	EvBestAnswerMarked = "best_answer_marked"
	EvVoteCountUpdated = "vote_count_updated"
	EvNewNotification  = "new_notification"
)

type typingPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Type     string `json:"type,omitempty"` // "answer" or "reply"
}

type stopTypingPayload struct {
	UserID string `json:"userId"`
}

type votePayload struct {
	TargetID   string `json:"targetId"`
	TargetType string `json:"targetType"` // "discussion", "answer" or "reply"
	VoteType   string `json:"voteType"`   // "up" or "down"
	UserID     string `json:"userId"`
}

type replyPayload struct {
	AnswerID string          `json:"answerId"`
	Reply    json.RawMessage `json:"reply"`
}

type bestAnswerPayload struct {
	AnswerID string `json:"answerId"`
}

type voteCountPayload struct {
	TargetID   string `json:"targetId"`
	TargetType string `json:"targetType"`
	VoteCount  int    `json:"voteCount"`
}

type testReplyPayload struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}
