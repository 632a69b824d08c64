package api

import (
	"context"

	"taskboard-api/domain"
)

// BoardService abstracts the mutation applier for handlers. The HTTP
// surface exercises the same operations as the socket layer, minus the
// fan-out step.
type BoardService interface {
	Create(ctx context.Context, draft domain.Board) (domain.Board, error)
	Get(ctx context.Context, boardID string) (domain.Board, error)
	List(ctx context.Context) ([]domain.Board, error)
	Update(ctx context.Context, boardID string, patch domain.BoardPatch) (domain.Board, error)
	Delete(ctx context.Context, boardID string) error
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

// Authenticator is implemented by types able to resolve identities from
// request credentials.
type Authenticator interface {
	IdentityFromAuthHeader(string) (domain.Identity, error)
	IdentityFromBearer([]byte) (domain.Identity, error)
}
