package socket

import (
	"context"
	"fmt"
	"io"
	"testing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"taskboard-api/board"
	"taskboard-api/domain"
)

// fakeBoards records mutation calls and returns canned results.
type fakeBoards struct {
	err      error
	panicOn  string
	calls    []string
	identity domain.Identity
	hasIdent bool
}

func (f *fakeBoards) record(ctx context.Context, name string) error {
	f.calls = append(f.calls, name)
	if id, ok := domain.IdentityFrom(ctx); ok {
		f.identity = id
		f.hasIdent = true
	}
	if f.panicOn == name {
		panic("boom")
	}
	return f.err
}

func (f *fakeBoards) AddGroup(ctx context.Context, boardID string, draft domain.Group) (domain.Board, domain.Group, error) {
	err := f.record(ctx, "AddGroup")
	return domain.Board{ID: boardID}, domain.Group{ID: "g-new", Title: draft.Title}, err
}

func (f *fakeBoards) UpdateGroup(ctx context.Context, boardID, groupID string, patch domain.GroupPatch) (domain.Board, domain.Group, error) {
	err := f.record(ctx, "UpdateGroup")
	return domain.Board{ID: boardID}, domain.Group{ID: groupID}, err
}

func (f *fakeBoards) DeleteGroup(ctx context.Context, boardID, groupID string) (domain.Board, error) {
	return domain.Board{ID: boardID}, f.record(ctx, "DeleteGroup")
}

func (f *fakeBoards) MoveGroup(ctx context.Context, boardID string, sourceIndex, targetIndex int) (domain.Board, error) {
	return domain.Board{ID: boardID}, f.record(ctx, "MoveGroup")
}

func (f *fakeBoards) AddTask(ctx context.Context, boardID, groupID string, draft domain.Task) (domain.Board, domain.Task, error) {
	err := f.record(ctx, "AddTask")
	return domain.Board{ID: boardID}, domain.Task{ID: "t-new", Title: draft.Title}, err
}

func (f *fakeBoards) UpdateTask(ctx context.Context, boardID, taskID string, patch domain.TaskPatch) (domain.Board, domain.Task, error) {
	err := f.record(ctx, "UpdateTask")
	return domain.Board{ID: boardID}, domain.Task{ID: taskID}, err
}

func (f *fakeBoards) DeleteTask(ctx context.Context, boardID, groupID, taskID string) (domain.Board, error) {
	return domain.Board{ID: boardID}, f.record(ctx, "DeleteTask")
}

func (f *fakeBoards) MoveTask(ctx context.Context, boardID, fromGroupID, taskID, toGroupID string) (domain.Board, error) {
	return domain.Board{ID: boardID}, f.record(ctx, "MoveTask")
}

func (f *fakeBoards) AddActivity(ctx context.Context, boardID string, draft domain.Activity) (domain.Board, domain.Activity, error) {
	err := f.record(ctx, "AddActivity")
	return domain.Board{ID: boardID}, domain.Activity{ID: "a-new", Text: draft.Text}, err
}

func quietLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestRouter(fb *fakeBoards) (*Router, *Registry) {
	reg := NewRegistry()
	logger := quietLogger()
	return NewRouter(fb, NewBroadcaster(reg, logger), reg, logger), reg
}

func newTestClient(t *testing.T, reg *Registry, id, userID string) *Client {
	t.Helper()
	c := &Client{
		id:       id,
		identity: domain.Identity{ID: userID, DisplayName: userID},
		send:     make(chan []byte, 16),
		log:      quietLogger().WithField("conn_id", id),
	}
	if err := reg.Admit(c); err != nil {
		t.Fatalf("admit %s: %v", id, err)
	}
	return c
}

func mkFrame(t *testing.T, kind string, payload any) []byte {
	t.Helper()
	frame, err := encodeFrame(kind, payload)
	if err != nil {
		t.Fatalf("encode %s frame: %v", kind, err)
	}
	return frame
}

// recvEnvelope drains one frame from the client's send buffer, or reports
// that none was queued.
func recvEnvelope(t *testing.T, c *Client) (Envelope, bool) {
	t.Helper()
	select {
	case frame := <-c.send:
		return decodeEnvelope(t, frame), true
	default:
		return Envelope{}, false
	}
}

func recvError(t *testing.T, c *Client) errorEvent {
	t.Helper()
	env, ok := recvEnvelope(t, c)
	if !ok {
		t.Fatal("expected a queued frame")
	}
	if env.Type != evtError {
		t.Fatalf("expected error frame, got %q", env.Type)
	}
	var ev errorEvent
	if err := decodePayload(env.Data, &ev); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return ev
}

func TestDispatchTaskAddFansOutToOthers(t *testing.T) {
	fb := &fakeBoards{}
	r, reg := newTestRouter(fb)
	sender := newTestClient(t, reg, "c1", "u1")
	peer := newTestClient(t, reg, "c2", "u2")
	outsider := newTestClient(t, reg, "c3", "u3")
	reg.Join("c1", boardTopic("b1"))
	reg.Join("c2", boardTopic("b1"))

	r.Dispatch(sender, mkFrame(t, evtTaskAdd, taskAddPayload{
		BoardID: "b1",
		GroupID: "g1",
		Task:    domain.Task{Title: "Ship it"},
	}))

	if len(fb.calls) != 1 || fb.calls[0] != "AddTask" {
		t.Fatalf("expected one AddTask call, got %v", fb.calls)
	}

	env, ok := recvEnvelope(t, peer)
	if !ok {
		t.Fatal("expected peer to receive the applied event")
	}
	if env.Type != evtTaskAdded {
		t.Fatalf("unexpected event type %q", env.Type)
	}
	var ev taskEvent
	if err := decodePayload(env.Data, &ev); err != nil {
		t.Fatalf("decode task event: %v", err)
	}
	if ev.BoardID != "b1" || ev.GroupID != "g1" || ev.Task.ID != "t-new" {
		t.Fatalf("unexpected task event: %+v", ev)
	}

	if _, ok := recvEnvelope(t, sender); ok {
		t.Fatal("originator must not receive its own applied event")
	}
	if _, ok := recvEnvelope(t, outsider); ok {
		t.Fatal("non-viewer must not receive the event")
	}
}

func TestDispatchUnknownEventKind(t *testing.T) {
	fb := &fakeBoards{}
	r, reg := newTestRouter(fb)
	sender := newTestClient(t, reg, "c1", "u1")

	r.Dispatch(sender, mkFrame(t, "board-explode", topicPayload{Topic: "x"}))

	if ev := recvError(t, sender); ev.Message != `unknown event type "board-explode"` {
		t.Fatalf("unexpected error message %q", ev.Message)
	}
	if len(fb.calls) != 0 {
		t.Fatalf("no service call expected, got %v", fb.calls)
	}
}

func TestDispatchMalformedFrame(t *testing.T) {
	fb := &fakeBoards{}
	r, reg := newTestRouter(fb)
	sender := newTestClient(t, reg, "c1", "u1")

	r.Dispatch(sender, []byte("{not json"))

	if ev := recvError(t, sender); ev.Message != "malformed event" {
		t.Fatalf("unexpected error message %q", ev.Message)
	}
}

func TestDispatchRejectsUnknownPayloadFields(t *testing.T) {
	fb := &fakeBoards{}
	r, reg := newTestRouter(fb)
	sender := newTestClient(t, reg, "c1", "u1")

	frame := []byte(`{"type":"group-add","data":{"boardId":"b1","title":"Todo","surprise":1}}`)
	r.Dispatch(sender, frame)

	if ev := recvError(t, sender); ev.Message != "failed to add group" {
		t.Fatalf("unexpected error message %q", ev.Message)
	}
	if len(fb.calls) != 0 {
		t.Fatalf("strict decode must reject before the service runs, got %v", fb.calls)
	}
}

func TestDispatchServiceErrorStaysWithSender(t *testing.T) {
	fb := &fakeBoards{err: fmt.Errorf("load board: %w", board.ErrBoardNotFound)}
	r, reg := newTestRouter(fb)
	sender := newTestClient(t, reg, "c1", "u1")
	peer := newTestClient(t, reg, "c2", "u2")
	reg.Join("c1", boardTopic("b1"))
	reg.Join("c2", boardTopic("b1"))

	r.Dispatch(sender, mkFrame(t, evtTaskAdd, taskAddPayload{BoardID: "b1", GroupID: "g1"}))

	if ev := recvError(t, sender); ev.Message != "failed to add task" {
		t.Fatalf("unexpected error message %q", ev.Message)
	}
	if _, ok := recvEnvelope(t, peer); ok {
		t.Fatal("failed mutations must not be broadcast")
	}
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	fb := &fakeBoards{panicOn: "AddActivity"}
	r, reg := newTestRouter(fb)
	sender := newTestClient(t, reg, "c1", "u1")
	peer := newTestClient(t, reg, "c2", "u2")
	reg.Join("c2", boardTopic("b1"))

	r.Dispatch(sender, mkFrame(t, evtActivityAdd, activityAddPayload{BoardID: "b1"}))

	if ev := recvError(t, sender); ev.Message != "failed to add activity" {
		t.Fatalf("unexpected error message %q", ev.Message)
	}
	if _, ok := recvEnvelope(t, peer); ok {
		t.Fatal("panicking handler must not broadcast")
	}
}

func TestDispatchBindsConnectionIdentity(t *testing.T) {
	fb := &fakeBoards{}
	r, reg := newTestRouter(fb)
	sender := newTestClient(t, reg, "c1", "u1")

	r.Dispatch(sender, mkFrame(t, evtActivityAdd, activityAddPayload{
		BoardID:  "b1",
		Activity: domain.Activity{Text: "moved a card"},
	}))

	if !fb.hasIdent {
		t.Fatal("expected handler context to carry the connection identity")
	}
	if fb.identity != sender.identity {
		t.Fatalf("unexpected identity %+v", fb.identity)
	}
}

func TestChatSendReachesSenderToo(t *testing.T) {
	fb := &fakeBoards{}
	r, reg := newTestRouter(fb)
	sender := newTestClient(t, reg, "c1", "u1")
	peer := newTestClient(t, reg, "c2", "u2")
	reg.Join("c1", "chat:general")
	reg.Join("c2", "chat:general")

	r.Dispatch(sender, mkFrame(t, evtChatSend, chatSendPayload{Topic: "chat:general", Message: "hi"}))

	for _, c := range []*Client{sender, peer} {
		env, ok := recvEnvelope(t, c)
		if !ok {
			t.Fatalf("expected %s to receive the message", c.id)
		}
		var ev chatMessageEvent
		if err := decodePayload(env.Data, &ev); err != nil {
			t.Fatalf("decode chat message: %v", err)
		}
		if ev.Message != "hi" || ev.By.ID != "u1" {
			t.Fatalf("unexpected chat message: %+v", ev)
		}
	}
}

func TestBoardUpdatedIsRelayOnly(t *testing.T) {
	fb := &fakeBoards{}
	r, reg := newTestRouter(fb)
	sender := newTestClient(t, reg, "c1", "u1")
	peer := newTestClient(t, reg, "c2", "u2")
	reg.Join("c1", boardTopic("b1"))
	reg.Join("c2", boardTopic("b1"))

	title := "Renamed"
	r.Dispatch(sender, mkFrame(t, evtBoardUpdated, boardUpdatedPayload{
		BoardID: "b1",
		Patch:   domain.BoardPatch{Title: &title},
	}))

	if len(fb.calls) != 0 {
		t.Fatalf("board-updated must not touch the mutation service, got %v", fb.calls)
	}
	env, ok := recvEnvelope(t, peer)
	if !ok || env.Type != evtBoardUpdated {
		t.Fatalf("expected relayed board-updated frame, got %v %q", ok, env.Type)
	}
	if _, ok := recvEnvelope(t, sender); ok {
		t.Fatal("originator must not receive the relay")
	}
}

func TestBoardWatchThenMutationDelivery(t *testing.T) {
	fb := &fakeBoards{}
	r, reg := newTestRouter(fb)
	sender := newTestClient(t, reg, "c1", "u1")
	peer := newTestClient(t, reg, "c2", "u2")

	r.Dispatch(peer, mkFrame(t, evtBoardWatch, boardRefPayload{BoardID: "b1"}))
	r.Dispatch(sender, mkFrame(t, evtGroupAdd, groupAddPayload{BoardID: "b1", Title: "Doing"}))

	env, ok := recvEnvelope(t, peer)
	if !ok || env.Type != evtGroupAdded {
		t.Fatalf("expected group-added after board-watch, got %v %q", ok, env.Type)
	}

	r.Dispatch(peer, mkFrame(t, evtBoardUnwatch, boardRefPayload{BoardID: "b1"}))
	r.Dispatch(sender, mkFrame(t, evtGroupAdd, groupAddPayload{BoardID: "b1", Title: "Done"}))
	if _, ok := recvEnvelope(t, peer); ok {
		t.Fatal("expected no delivery after board-unwatch")
	}
}

func TestDispatchTracesEvents(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	fb := &fakeBoards{}
	r, reg := newTestRouter(fb)
	sender := newTestClient(t, reg, "c1", "u1")

	r.Dispatch(sender, mkFrame(t, evtGroupAdd, groupAddPayload{BoardID: "b1", Title: "Todo"}))

	fb.err = board.ErrGroupNotFound
	r.Dispatch(sender, mkFrame(t, evtGroupDelete, groupDeletePayload{BoardID: "b1", GroupID: "ghost"}))

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected two spans, got %d", len(spans))
	}
	for _, s := range spans {
		if s.Name != "socket.dispatch" {
			t.Fatalf("unexpected span name %q", s.Name)
		}
	}
	if spans[0].Status.Code == otelcodes.Error {
		t.Fatal("successful dispatch must not carry error status")
	}
	if spans[1].Status.Code != otelcodes.Error {
		t.Fatal("failed dispatch must carry error status")
	}

	var sawKind bool
	for _, attr := range spans[0].Attributes {
		if string(attr.Key) == "event.kind" && attr.Value.AsString() == evtGroupAdd {
			sawKind = true
		}
	}
	if !sawKind {
		t.Fatal("expected event.kind attribute on dispatch span")
	}
}
