package socket

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"taskboard-api/domain"
)

// Inbound event kinds. The set is closed: anything else is rejected at the
// decode boundary.
const (
	evtTopicJoin    = "topic-join"
	evtTopicLeave   = "topic-leave"
	evtChatSend     = "chat-send"
	evtUserWatch    = "user-watch"
	evtBoardWatch   = "board-watch"
	evtBoardUnwatch = "board-unwatch"
	evtBoardUpdated = "board-updated"
	evtGroupAdd     = "group-add"
	evtGroupUpdate  = "group-update"
	evtGroupDelete  = "group-delete"
	evtGroupMove    = "group-move"
	evtTaskAdd      = "task-add"
	evtTaskUpdate   = "task-update"
	evtTaskDelete   = "task-delete"
	evtTaskMove     = "task-move"
	evtActivityAdd  = "activity-add"
)

// Outbound event kinds.
const (
	evtConnected     = "connected"
	evtError         = "error"
	evtChatMessage   = "chat-message"
	evtGroupAdded    = "group-added"
	evtGroupUpdated  = "group-updated"
	evtGroupDeleted  = "group-deleted"
	evtGroupMoved    = "group-moved"
	evtTaskAdded     = "task-added"
	evtTaskUpdated   = "task-updated"
	evtTaskDeleted   = "task-deleted"
	evtTaskMoved     = "task-moved"
	evtActivityAdded = "activity-added"
)

// Envelope is the wire frame for every event in both directions.
type Envelope struct {
	Type string                 `json:"type"`
	Data sonic.NoCopyRawMessage `json:"data,omitempty"`
}

var errMalformedPayload = errors.New("malformed event payload")

// decodePayload unmarshals an event payload strictly: unknown fields are a
// decode error, not something to silently carry along.
func decodePayload(data sonic.NoCopyRawMessage, v any) error {
	if len(data) == 0 {
		return errMalformedPayload
	}
	dec := sonic.ConfigStd.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errMalformedPayload, err)
	}
	return nil
}

// Inbound payload shapes.

type topicPayload struct {
	Topic string `json:"topic"`
}

type chatSendPayload struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
}

type userWatchPayload struct {
	UserID string `json:"userId"`
}

type boardRefPayload struct {
	BoardID string `json:"boardId"`
}

type boardUpdatedPayload struct {
	BoardID string            `json:"boardId"`
	Patch   domain.BoardPatch `json:"patch"`
}

type groupAddPayload struct {
	BoardID string         `json:"boardId"`
	Title   string         `json:"title"`
	Style   map[string]any `json:"style,omitempty"`
}

type groupUpdatePayload struct {
	BoardID string            `json:"boardId"`
	GroupID string            `json:"groupId"`
	Patch   domain.GroupPatch `json:"patch"`
}

type groupDeletePayload struct {
	BoardID string `json:"boardId"`
	GroupID string `json:"groupId"`
}

type groupMovePayload struct {
	BoardID     string `json:"boardId"`
	SourceIndex int    `json:"sourceIndex"`
	TargetIndex int    `json:"targetIndex"`
}

type taskAddPayload struct {
	BoardID string      `json:"boardId"`
	GroupID string      `json:"groupId"`
	Task    domain.Task `json:"task"`
}

type taskUpdatePayload struct {
	BoardID string           `json:"boardId"`
	TaskID  string           `json:"taskId"`
	Patch   domain.TaskPatch `json:"patch"`
}

type taskDeletePayload struct {
	BoardID string `json:"boardId"`
	GroupID string `json:"groupId"`
	TaskID  string `json:"taskId"`
}

type taskMovePayload struct {
	BoardID       string `json:"boardId"`
	TaskID        string `json:"taskId"`
	SourceGroupID string `json:"sourceGroupId"`
	TargetGroupID string `json:"targetGroupId"`
}

type activityAddPayload struct {
	BoardID  string          `json:"boardId"`
	Activity domain.Activity `json:"activity"`
}

// Outbound payload shapes. Entity events embed the resulting entity so the
// encoded frame carries its fields flattened next to the routing ids.

type connectedEvent struct {
	ConnID string        `json:"connId"`
	Member domain.Member `json:"member"`
}

type errorEvent struct {
	Message string `json:"message"`
}

type chatMessageEvent struct {
	Topic   string        `json:"topic"`
	Message string        `json:"message"`
	By      domain.Member `json:"by"`
}

type groupEvent struct {
	BoardID string `json:"boardId"`
	domain.Group
}

type groupDeletedEvent struct {
	BoardID string `json:"boardId"`
	GroupID string `json:"groupId"`
}

type groupMovedEvent struct {
	BoardID     string `json:"boardId"`
	SourceIndex int    `json:"sourceIndex"`
	TargetIndex int    `json:"targetIndex"`
}

type taskEvent struct {
	BoardID string `json:"boardId"`
	GroupID string `json:"groupId,omitempty"`
	domain.Task
}

type taskDeletedEvent struct {
	BoardID string `json:"boardId"`
	GroupID string `json:"groupId"`
	TaskID  string `json:"taskId"`
}

type taskMovedEvent struct {
	BoardID       string `json:"boardId"`
	TaskID        string `json:"taskId"`
	SourceGroupID string `json:"sourceGroupId"`
	TargetGroupID string `json:"targetGroupId"`
}

type activityAddedEvent struct {
	BoardID  string          `json:"boardId"`
	Activity domain.Activity `json:"activity"`
}

// encodeFrame marshals an outbound envelope.
func encodeFrame(kind string, payload any) ([]byte, error) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return sonic.Marshal(Envelope{Type: kind, Data: data})
}
