package domain

// Patches are shallow merges: fields present in the patch overwrite the
// entity's fields, absent fields are preserved. Entity ids are never
// patchable.

// BoardPatch updates board-level fields.
type BoardPatch struct {
	Title     *string        `json:"title,omitempty"`
	Members   []Member       `json:"members,omitempty"`
	Labels    []Label        `json:"labels,omitempty"`
	Style     map[string]any `json:"style,omitempty"`
	IsStarred *bool          `json:"isStarred,omitempty"`
}

// GroupPatch updates group-level fields.
type GroupPatch struct {
	Title *string        `json:"title,omitempty"`
	Style map[string]any `json:"style,omitempty"`
}

// TaskPatch updates task-level fields.
type TaskPatch struct {
	Title       *string        `json:"title,omitempty"`
	Status      *string        `json:"status,omitempty"`
	Description *string        `json:"description,omitempty"`
	MemberIDs   []string       `json:"memberIds,omitempty"`
	LabelIDs    []string       `json:"labelIds,omitempty"`
	DueDate     *int64         `json:"dueDate,omitempty"`
	Style       map[string]any `json:"style,omitempty"`
}

// Apply merges the patch into the board.
func (b *Board) Apply(p BoardPatch) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Members != nil {
		b.Members = p.Members
	}
	if p.Labels != nil {
		b.Labels = p.Labels
	}
	if p.Style != nil {
		b.Style = p.Style
	}
	if p.IsStarred != nil {
		b.IsStarred = *p.IsStarred
	}
}

// Apply merges the patch into the group.
func (g *Group) Apply(p GroupPatch) {
	if p.Title != nil {
		g.Title = *p.Title
	}
	if p.Style != nil {
		g.Style = p.Style
	}
}

// Apply merges the patch into the task.
func (t *Task) Apply(p TaskPatch) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.MemberIDs != nil {
		t.MemberIDs = p.MemberIDs
	}
	if p.LabelIDs != nil {
		t.LabelIDs = p.LabelIDs
	}
	if p.DueDate != nil {
		t.DueDate = p.DueDate
	}
	if p.Style != nil {
		t.Style = p.Style
	}
}
