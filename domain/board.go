// Package domain holds the board document model shared by the HTTP API,
// the realtime socket layer, and storage.
package domain

// Member is the summary of a user as embedded in board documents. It never
// carries credentials.
type Member struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Label is a board-scoped tag that tasks reference by id.
type Label struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Color string `json:"color,omitempty"`
}

// Task is a single card. Its id is unique within the owning group and is
// always assigned by the server.
type Task struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Status      string         `json:"status,omitempty"`
	Description string         `json:"description,omitempty"`
	MemberIDs   []string       `json:"memberIds,omitempty"`
	LabelIDs    []string       `json:"labelIds,omitempty"`
	DueDate     *int64         `json:"dueDate,omitempty"`
	Style       map[string]any `json:"style,omitempty"`
	CreatedAt   int64          `json:"createdAt,omitempty"`
}

// Group is an ordered column of tasks. Order within Board.Groups is the
// display order.
type Group struct {
	ID    string         `json:"id"`
	Title string         `json:"title"`
	Style map[string]any `json:"style,omitempty"`
	Tasks []Task         `json:"tasks"`
}

// Activity is one append-only log entry. Board.Activities is ordered
// newest first; entries are never mutated after creation.
type Activity struct {
	ID        string `json:"id"`
	Text      string `json:"txt"`
	CreatedAt int64  `json:"createdAt"`
	ByMember  Member `json:"byMember"`
}

// Board is the full document for one project. Timestamps are Unix
// milliseconds.
type Board struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Groups     []Group        `json:"groups"`
	Activities []Activity     `json:"activities"`
	Members    []Member       `json:"members,omitempty"`
	Labels     []Label        `json:"labels,omitempty"`
	Style      map[string]any `json:"style,omitempty"`
	IsStarred  bool           `json:"isStarred,omitempty"`
	CreatedBy  Member         `json:"createdBy"`
	CreatedAt  int64          `json:"createdAt,omitempty"`
	UpdatedAt  int64          `json:"updatedAt,omitempty"`
}

// GroupIndex returns the position of the group with the given id, or -1.
func (b *Board) GroupIndex(groupID string) int {
	for i := range b.Groups {
		if b.Groups[i].ID == groupID {
			return i
		}
	}
	return -1
}

// FindGroup returns the group with the given id, or nil.
func (b *Board) FindGroup(groupID string) *Group {
	if i := b.GroupIndex(groupID); i >= 0 {
		return &b.Groups[i]
	}
	return nil
}

// FindTask locates a task by id across all groups and returns the owning
// group and the task, or nil when absent.
func (b *Board) FindTask(taskID string) (*Group, *Task) {
	for gi := range b.Groups {
		g := &b.Groups[gi]
		for ti := range g.Tasks {
			if g.Tasks[ti].ID == taskID {
				return g, &g.Tasks[ti]
			}
		}
	}
	return nil, nil
}
