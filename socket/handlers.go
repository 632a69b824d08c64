package socket

import (
	"context"
	"errors"

	"github.com/bytedance/sonic"

	"taskboard-api/domain"
)

var errEmptyTopic = errors.New("empty topic")

func (r *Router) handleTopicJoin(_ context.Context, c *Client, data sonic.NoCopyRawMessage) (string, error) {
	var p topicPayload
	if err := decodePayload(data, &p); err != nil {
		return "", err
	}
	if p.Topic == "" {
		return "", errEmptyTopic
	}
	r.registry.Join(c.id, p.Topic)
	return "", nil
}

func (r *Router) handleTopicLeave(_ context.Context, c *Client, data sonic.NoCopyRawMessage) (string, error) {
	var p topicPayload
	if err := decodePayload(data, &p); err != nil {
		return "", err
	}
	if p.Topic == "" {
		return "", errEmptyTopic
	}
	r.registry.Leave(c.id, p.Topic)
	return "", nil
}

// handleChatSend relays a chat message to every subscriber of the topic,
// the sender included.
func (r *Router) handleChatSend(ctx context.Context, c *Client, data sonic.NoCopyRawMessage) (string, error) {
	var p chatSendPayload
	if err := decodePayload(data, &p); err != nil {
		return "", err
	}
	if p.Topic == "" {
		return "", errEmptyTopic
	}
	by := c.identity.Member()
	if id, ok := domain.IdentityFrom(ctx); ok {
		by = id.Member()
	}
	r.broadcaster.Publish(p.Topic, evtChatMessage, chatMessageEvent{Topic: p.Topic, Message: p.Message, By: by}, "")
	return "", nil
}

func (r *Router) handleUserWatch(_ context.Context, c *Client, data sonic.NoCopyRawMessage) (string, error) {
	var p userWatchPayload
	if err := decodePayload(data, &p); err != nil {
		return "", err
	}
	r.registry.Join(c.id, watchingTopicPrefix+p.UserID)
	return "", nil
}

func (r *Router) handleBoardWatch(_ context.Context, c *Client, data sonic.NoCopyRawMessage) (string, error) {
	var p boardRefPayload
	if err := decodePayload(data, &p); err != nil {
		return "", err
	}
	r.registry.Join(c.id, boardTopic(p.BoardID))
	return p.BoardID, nil
}

func (r *Router) handleBoardUnwatch(_ context.Context, c *Client, data sonic.NoCopyRawMessage) (string, error) {
	var p boardRefPayload
	if err := decodePayload(data, &p); err != nil {
		return "", err
	}
	r.registry.Leave(c.id, boardTopic(p.BoardID))
	return p.BoardID, nil
}

// handleBoardUpdated relays a board-level patch to the board's other
// viewers. Persistence of board-level fields happens through the HTTP
// surface; the socket event is a live notification only.
func (r *Router) handleBoardUpdated(_ context.Context, c *Client, data sonic.NoCopyRawMessage) (string, error) {
	var p boardUpdatedPayload
	if err := decodePayload(data, &p); err != nil {
		return "", err
	}
	r.broadcaster.Publish(boardTopic(p.BoardID), evtBoardUpdated, p, c.id)
	return p.BoardID, nil
}

func (r *Router) handleGroupAdd(ctx context.Context, c *Client, data sonic.NoCopyRawMessage) (string, error) {
	var p groupAddPayload
	if err := decodePayload(data, &p); err != nil {
		return "", err
	}
	_, added, err := r.boards.AddGroup(ctx, p.BoardID, domain.Group{Title: p.Title, Style: p.Style})
	if err != nil {
		return p.BoardID, err
	}
	r.broadcaster.Publish(boardTopic(p.BoardID), evtGroupAdded, groupEvent{BoardID: p.BoardID, Group: added}, c.id)
	return p.BoardID, nil
}

func (r *Router) handleGroupUpdate(ctx context.Context, c *Client, data sonic.NoCopyRawMessage) (string, error) {
	var p groupUpdatePayload
	if err := decodePayload(data, &p); err != nil {
		return "", err
	}
	_, updated, err := r.boards.UpdateGroup(ctx, p.BoardID, p.GroupID, p.Patch)
	if err != nil {
		return p.BoardID, err
	}
	r.broadcaster.Publish(boardTopic(p.BoardID), evtGroupUpdated, groupEvent{BoardID: p.BoardID, Group: updated}, c.id)
	return p.BoardID, nil
}

func (r *Router) handleGroupDelete(ctx context.Context, c *Client, data sonic.NoCopyRawMessage) (string, error) {
	var p groupDeletePayload
	if err := decodePayload(data, &p); err != nil {
		return "", err
	}
	if _, err := r.boards.DeleteGroup(ctx, p.BoardID, p.GroupID); err != nil {
		return p.BoardID, err
	}
	r.broadcaster.Publish(boardTopic(p.BoardID), evtGroupDeleted, groupDeletedEvent{BoardID: p.BoardID, GroupID: p.GroupID}, c.id)
	return p.BoardID, nil
}

func (r *Router) handleGroupMove(ctx context.Context, c *Client, data sonic.NoCopyRawMessage) (string, error) {
	var p groupMovePayload
	if err := decodePayload(data, &p); err != nil {
		return "", err
	}
	if _, err := r.boards.MoveGroup(ctx, p.BoardID, p.SourceIndex, p.TargetIndex); err != nil {
		return p.BoardID, err
	}
	r.broadcaster.Publish(boardTopic(p.BoardID), evtGroupMoved, groupMovedEvent{BoardID: p.BoardID, SourceIndex: p.SourceIndex, TargetIndex: p.TargetIndex}, c.id)
	return p.BoardID, nil
}

func (r *Router) handleTaskAdd(ctx context.Context, c *Client, data sonic.NoCopyRawMessage) (string, error) {
	var p taskAddPayload
	if err := decodePayload(data, &p); err != nil {
		return "", err
	}
	_, added, err := r.boards.AddTask(ctx, p.BoardID, p.GroupID, p.Task)
	if err != nil {
		return p.BoardID, err
	}
	r.broadcaster.Publish(boardTopic(p.BoardID), evtTaskAdded, taskEvent{BoardID: p.BoardID, GroupID: p.GroupID, Task: added}, c.id)
	return p.BoardID, nil
}

func (r *Router) handleTaskUpdate(ctx context.Context, c *Client, data sonic.NoCopyRawMessage) (string, error) {
	var p taskUpdatePayload
	if err := decodePayload(data, &p); err != nil {
		return "", err
	}
	_, updated, err := r.boards.UpdateTask(ctx, p.BoardID, p.TaskID, p.Patch)
	if err != nil {
		return p.BoardID, err
	}
	r.broadcaster.Publish(boardTopic(p.BoardID), evtTaskUpdated, taskEvent{BoardID: p.BoardID, Task: updated}, c.id)
	return p.BoardID, nil
}

func (r *Router) handleTaskDelete(ctx context.Context, c *Client, data sonic.NoCopyRawMessage) (string, error) {
	var p taskDeletePayload
	if err := decodePayload(data, &p); err != nil {
		return "", err
	}
	if _, err := r.boards.DeleteTask(ctx, p.BoardID, p.GroupID, p.TaskID); err != nil {
		return p.BoardID, err
	}
	r.broadcaster.Publish(boardTopic(p.BoardID), evtTaskDeleted, taskDeletedEvent{BoardID: p.BoardID, GroupID: p.GroupID, TaskID: p.TaskID}, c.id)
	return p.BoardID, nil
}

func (r *Router) handleTaskMove(ctx context.Context, c *Client, data sonic.NoCopyRawMessage) (string, error) {
	var p taskMovePayload
	if err := decodePayload(data, &p); err != nil {
		return "", err
	}
	if _, err := r.boards.MoveTask(ctx, p.BoardID, p.SourceGroupID, p.TaskID, p.TargetGroupID); err != nil {
		return p.BoardID, err
	}
	r.broadcaster.Publish(boardTopic(p.BoardID), evtTaskMoved, taskMovedEvent{
		BoardID:       p.BoardID,
		TaskID:        p.TaskID,
		SourceGroupID: p.SourceGroupID,
		TargetGroupID: p.TargetGroupID,
	}, c.id)
	return p.BoardID, nil
}

func (r *Router) handleActivityAdd(ctx context.Context, c *Client, data sonic.NoCopyRawMessage) (string, error) {
	var p activityAddPayload
	if err := decodePayload(data, &p); err != nil {
		return "", err
	}
	_, added, err := r.boards.AddActivity(ctx, p.BoardID, p.Activity)
	if err != nil {
		return p.BoardID, err
	}
	r.broadcaster.Publish(boardTopic(p.BoardID), evtActivityAdded, activityAddedEvent{BoardID: p.BoardID, Activity: added}, c.id)
	return p.BoardID, nil
}
