// Package board implements the authoritative mutation operations on board
// documents. Every operation is a full load, in-memory transform, and
// whole-document save, so storage only ever sees the prior document or the
// fully updated one.
package board

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"taskboard-api/domain"
)

// Store abstracts the board document store.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Board, error)
	Save(ctx context.Context, b domain.Board) error
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Board, error)
}

// Service applies mutations to board documents. Entity ids are always
// assigned here, never trusted from the client.
type Service struct {
	store Store
	newID func() string
	now   func() int64
}

// NewService creates a Service backed by the given store.
func NewService(store Store) *Service {
	return &Service{
		store: store,
		newID: uuid.NewString,
		now:   nextTimestamp,
	}
}

func (s *Service) save(ctx context.Context, b *domain.Board) error {
	b.UpdatedAt = s.now()
	return s.store.Save(ctx, *b)
}

// Create persists a new board from the draft. The id, creation timestamp,
// creator, and member list are assigned server-side; the acting identity
// bound to the context becomes the creator when the draft names none.
func (s *Service) Create(ctx context.Context, draft domain.Board) (domain.Board, error) {
	draft.ID = s.newID()
	draft.CreatedAt = s.now()
	draft.Activities = []domain.Activity{}
	if draft.Groups == nil {
		draft.Groups = []domain.Group{}
	}
	for gi := range draft.Groups {
		g := &draft.Groups[gi]
		g.ID = s.newID()
		if g.Tasks == nil {
			g.Tasks = []domain.Task{}
		}
		for ti := range g.Tasks {
			g.Tasks[ti].ID = s.newID()
		}
	}
	if draft.CreatedBy.ID == "" {
		if id, ok := domain.IdentityFrom(ctx); ok {
			draft.CreatedBy = id.Member()
		}
	}
	if len(draft.Members) == 0 && draft.CreatedBy.ID != "" {
		draft.Members = []domain.Member{draft.CreatedBy}
	}
	if err := s.save(ctx, &draft); err != nil {
		return domain.Board{}, err
	}
	return draft, nil
}

// Get loads one board by id.
func (s *Service) Get(ctx context.Context, boardID string) (domain.Board, error) {
	return s.store.GetByID(ctx, boardID)
}

// List loads all boards.
func (s *Service) List(ctx context.Context) ([]domain.Board, error) {
	return s.store.List(ctx)
}

// Update shallow-merges board-level fields.
func (s *Service) Update(ctx context.Context, boardID string, patch domain.BoardPatch) (domain.Board, error) {
	b, err := s.store.GetByID(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	b.Apply(patch)
	if err := s.save(ctx, &b); err != nil {
		return domain.Board{}, err
	}
	return b, nil
}

// Delete removes a board. Deleting an unknown id is a no-op.
func (s *Service) Delete(ctx context.Context, boardID string) error {
	return s.store.Remove(ctx, boardID)
}

// AddGroup appends a new group with a fresh id and an empty task list.
func (s *Service) AddGroup(ctx context.Context, boardID string, draft domain.Group) (domain.Board, domain.Group, error) {
	b, err := s.store.GetByID(ctx, boardID)
	if err != nil {
		return domain.Board{}, domain.Group{}, err
	}
	draft.ID = s.newID()
	draft.Tasks = []domain.Task{}
	b.Groups = append(b.Groups, draft)
	if err := s.save(ctx, &b); err != nil {
		return domain.Board{}, domain.Group{}, err
	}
	return b, draft, nil
}

// UpdateGroup shallow-merges fields into the group with the given id.
func (s *Service) UpdateGroup(ctx context.Context, boardID, groupID string, patch domain.GroupPatch) (domain.Board, domain.Group, error) {
	b, err := s.store.GetByID(ctx, boardID)
	if err != nil {
		return domain.Board{}, domain.Group{}, err
	}
	g := b.FindGroup(groupID)
	if g == nil {
		return domain.Board{}, domain.Group{}, fmt.Errorf("update group %s: %w", groupID, ErrGroupNotFound)
	}
	g.Apply(patch)
	if err := s.save(ctx, &b); err != nil {
		return domain.Board{}, domain.Group{}, err
	}
	return b, *g, nil
}

// DeleteGroup removes the group by id. Removing an absent id is a no-op.
func (s *Service) DeleteGroup(ctx context.Context, boardID, groupID string) (domain.Board, error) {
	b, err := s.store.GetByID(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	i := b.GroupIndex(groupID)
	if i < 0 {
		return b, nil
	}
	b.Groups = append(b.Groups[:i], b.Groups[i+1:]...)
	if err := s.save(ctx, &b); err != nil {
		return domain.Board{}, err
	}
	return b, nil
}

// MoveGroup removes the group at sourceIndex and reinserts it at
// targetIndex within the ordered sequence.
func (s *Service) MoveGroup(ctx context.Context, boardID string, sourceIndex, targetIndex int) (domain.Board, error) {
	b, err := s.store.GetByID(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	n := len(b.Groups)
	if sourceIndex < 0 || sourceIndex >= n || targetIndex < 0 || targetIndex >= n {
		return domain.Board{}, fmt.Errorf("move group %d -> %d of %d: %w", sourceIndex, targetIndex, n, ErrIndexOutOfRange)
	}
	moved := b.Groups[sourceIndex]
	b.Groups = append(b.Groups[:sourceIndex], b.Groups[sourceIndex+1:]...)
	b.Groups = append(b.Groups[:targetIndex], append([]domain.Group{moved}, b.Groups[targetIndex:]...)...)
	if err := s.save(ctx, &b); err != nil {
		return domain.Board{}, err
	}
	return b, nil
}

// AddTask appends a new task with a fresh id to the named group.
func (s *Service) AddTask(ctx context.Context, boardID, groupID string, draft domain.Task) (domain.Board, domain.Task, error) {
	b, err := s.store.GetByID(ctx, boardID)
	if err != nil {
		return domain.Board{}, domain.Task{}, err
	}
	g := b.FindGroup(groupID)
	if g == nil {
		return domain.Board{}, domain.Task{}, fmt.Errorf("add task to group %s: %w", groupID, ErrGroupNotFound)
	}
	draft.ID = s.newID()
	draft.CreatedAt = s.now()
	g.Tasks = append(g.Tasks, draft)
	if err := s.save(ctx, &b); err != nil {
		return domain.Board{}, domain.Task{}, err
	}
	return b, draft, nil
}

// UpdateTask shallow-merges fields into the task found by id on any group.
func (s *Service) UpdateTask(ctx context.Context, boardID, taskID string, patch domain.TaskPatch) (domain.Board, domain.Task, error) {
	b, err := s.store.GetByID(ctx, boardID)
	if err != nil {
		return domain.Board{}, domain.Task{}, err
	}
	_, t := b.FindTask(taskID)
	if t == nil {
		return domain.Board{}, domain.Task{}, fmt.Errorf("update task %s: %w", taskID, ErrTaskNotFound)
	}
	t.Apply(patch)
	if err := s.save(ctx, &b); err != nil {
		return domain.Board{}, domain.Task{}, err
	}
	return b, *t, nil
}

// DeleteTask removes the task from the named group. Removing an absent task
// id is a no-op; an unknown group id is an error.
func (s *Service) DeleteTask(ctx context.Context, boardID, groupID, taskID string) (domain.Board, error) {
	b, err := s.store.GetByID(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	g := b.FindGroup(groupID)
	if g == nil {
		return domain.Board{}, fmt.Errorf("delete task from group %s: %w", groupID, ErrGroupNotFound)
	}
	kept := g.Tasks[:0]
	removed := false
	for _, t := range g.Tasks {
		if t.ID == taskID {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	if !removed {
		return b, nil
	}
	g.Tasks = kept
	if err := s.save(ctx, &b); err != nil {
		return domain.Board{}, err
	}
	return b, nil
}

// MoveTask removes the task from the source group and appends it to the
// destination group in one load/save cycle, so no reader ever observes the
// task absent from both groups.
func (s *Service) MoveTask(ctx context.Context, boardID, fromGroupID, taskID, toGroupID string) (domain.Board, error) {
	b, err := s.store.GetByID(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	from := b.FindGroup(fromGroupID)
	if from == nil {
		return domain.Board{}, fmt.Errorf("move task from group %s: %w", fromGroupID, ErrGroupNotFound)
	}
	to := b.FindGroup(toGroupID)
	if to == nil {
		return domain.Board{}, fmt.Errorf("move task to group %s: %w", toGroupID, ErrGroupNotFound)
	}
	idx := -1
	for i := range from.Tasks {
		if from.Tasks[i].ID == taskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Board{}, fmt.Errorf("move task %s: %w", taskID, ErrTaskNotFound)
	}
	task := from.Tasks[idx]
	from.Tasks = append(from.Tasks[:idx], from.Tasks[idx+1:]...)
	to.Tasks = append(to.Tasks, task)
	if err := s.save(ctx, &b); err != nil {
		return domain.Board{}, err
	}
	return b, nil
}

// AddActivity prepends a new activity with a fresh id and a server-assigned
// timestamp. ByMember defaults to the acting identity when the draft omits
// it.
func (s *Service) AddActivity(ctx context.Context, boardID string, draft domain.Activity) (domain.Board, domain.Activity, error) {
	b, err := s.store.GetByID(ctx, boardID)
	if err != nil {
		return domain.Board{}, domain.Activity{}, err
	}
	draft.ID = s.newID()
	draft.CreatedAt = s.now()
	if draft.ByMember.ID == "" {
		if id, ok := domain.IdentityFrom(ctx); ok {
			draft.ByMember = id.Member()
		}
	}
	b.Activities = append([]domain.Activity{draft}, b.Activities...)
	if err := s.save(ctx, &b); err != nil {
		return domain.Board{}, domain.Activity{}, err
	}
	return b, draft, nil
}
