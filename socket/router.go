package socket

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taskboard-api/domain"
)

const tracerName = "taskboard-api/socket"

// BoardService is the slice of the mutation applier the socket handlers
// need.
type BoardService interface {
	AddGroup(ctx context.Context, boardID string, draft domain.Group) (domain.Board, domain.Group, error)
	UpdateGroup(ctx context.Context, boardID, groupID string, patch domain.GroupPatch) (domain.Board, domain.Group, error)
	DeleteGroup(ctx context.Context, boardID, groupID string) (domain.Board, error)
	MoveGroup(ctx context.Context, boardID string, sourceIndex, targetIndex int) (domain.Board, error)
	AddTask(ctx context.Context, boardID, groupID string, draft domain.Task) (domain.Board, domain.Task, error)
	UpdateTask(ctx context.Context, boardID, taskID string, patch domain.TaskPatch) (domain.Board, domain.Task, error)
	DeleteTask(ctx context.Context, boardID, groupID, taskID string) (domain.Board, error)
	MoveTask(ctx context.Context, boardID, fromGroupID, taskID, toGroupID string) (domain.Board, error)
	AddActivity(ctx context.Context, boardID string, draft domain.Activity) (domain.Board, domain.Activity, error)
}

// handlerFunc processes one decoded event. It returns the target board id
// (empty for non-board events) for logging and tracing.
type handlerFunc func(ctx context.Context, c *Client, data sonic.NoCopyRawMessage) (boardID string, err error)

type binding struct {
	handle  handlerFunc
	failMsg string
}

// Router binds inbound event kinds to their handlers and isolates each
// dispatch: a failing or panicking handler is logged and reported to the
// originating connection only, never anywhere else.
type Router struct {
	boards      BoardService
	broadcaster *Broadcaster
	registry    *Registry
	log         *log.Logger
	tracer      trace.Tracer
	bindings    map[string]binding
}

// NewRouter creates a Router dispatching into the given mutation service
// and broadcaster.
func NewRouter(boards BoardService, broadcaster *Broadcaster, registry *Registry, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.StandardLogger()
	}
	r := &Router{
		boards:      boards,
		broadcaster: broadcaster,
		registry:    registry,
		log:         logger,
		tracer:      otel.Tracer(tracerName),
	}
	r.bindings = map[string]binding{
		evtTopicJoin:    {r.handleTopicJoin, "failed to join topic"},
		evtTopicLeave:   {r.handleTopicLeave, "failed to leave topic"},
		evtChatSend:     {r.handleChatSend, "failed to send message"},
		evtUserWatch:    {r.handleUserWatch, "failed to watch user"},
		evtBoardWatch:   {r.handleBoardWatch, "failed to watch board"},
		evtBoardUnwatch: {r.handleBoardUnwatch, "failed to unwatch board"},
		evtBoardUpdated: {r.handleBoardUpdated, "failed to update board"},
		evtGroupAdd:     {r.handleGroupAdd, "failed to add group"},
		evtGroupUpdate:  {r.handleGroupUpdate, "failed to update group"},
		evtGroupDelete:  {r.handleGroupDelete, "failed to delete group"},
		evtGroupMove:    {r.handleGroupMove, "failed to move group"},
		evtTaskAdd:      {r.handleTaskAdd, "failed to add task"},
		evtTaskUpdate:   {r.handleTaskUpdate, "failed to update task"},
		evtTaskDelete:   {r.handleTaskDelete, "failed to delete task"},
		evtTaskMove:     {r.handleTaskMove, "failed to move task"},
		evtActivityAdd:  {r.handleActivityAdd, "failed to add activity"},
	}
	return r
}

// Dispatch decodes one inbound frame and runs the matching handler under
// the connection's identity. All failures stop at this boundary.
func (r *Router) Dispatch(c *Client, frame []byte) {
	var env Envelope
	if err := sonic.Unmarshal(frame, &env); err != nil || env.Type == "" {
		r.log.WithField("conn_id", c.id).Warnf("malformed event frame: %v", err)
		c.sendError("malformed event")
		return
	}

	b, ok := r.bindings[env.Type]
	if !ok {
		r.log.WithFields(log.Fields{"conn_id": c.id, "event": env.Type}).Warn("unknown event type")
		c.sendError(fmt.Sprintf("unknown event type %q", env.Type))
		return
	}

	ctx := domain.WithIdentity(context.Background(), c.identity)
	ctx, span := r.tracer.Start(ctx, "socket.dispatch",
		trace.WithAttributes(
			attribute.String("event.kind", env.Type),
			attribute.String("conn.id", c.id),
		))
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			span.SetStatus(codes.Error, "panic")
			span.End()
			r.log.WithFields(log.Fields{"conn_id": c.id, "event": env.Type}).Errorf("handler panic: %v", rec)
			c.sendError(b.failMsg)
		}
	}()

	boardID, err := b.handle(ctx, c, env.Data)

	fields := log.Fields{
		"conn_id":  c.id,
		"event":    env.Type,
		"total_ms": float64(time.Since(start)) / float64(time.Millisecond),
	}
	if boardID != "" {
		fields["board_id"] = boardID
		span.SetAttributes(attribute.String("board.id", boardID))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		fields["error"] = err.Error()
		r.log.WithFields(fields).Error("socket event failed")
		c.sendError(b.failMsg)
		return
	}
	span.End()
	r.log.WithFields(fields).Info("socket event handled")
}
