package board

import "errors"

var (
	// ErrBoardNotFound means the board id does not resolve in storage.
	ErrBoardNotFound = errors.New("board not found")
	// ErrGroupNotFound means the group id does not match any group on the board.
	ErrGroupNotFound = errors.New("group not found")
	// ErrTaskNotFound means the task id is absent from the expected group.
	ErrTaskNotFound = errors.New("task not found")
	// ErrIndexOutOfRange means a position-based move used an invalid index.
	ErrIndexOutOfRange = errors.New("group index out of range")
)
