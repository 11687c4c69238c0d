// Package timeblock defines the time-block domain types and validation rules.
package timeblock

import (
	"strings"
	"time"

	"github.com/colonyops/tempo/pkg/randid"
)

// Source tags a block's provenance. It never changes after creation.
type Source string

// Block sources.
const (
	SourceTimer  Source = "timer"
	SourceManual Source = "manual"
)

// Selection types for ServiceNow assignment metadata.
const (
	SelectionNone     = ""
	SelectionTask     = "task"
	SelectionCategory = "category"
)

// CategoryTaskWork is the reserved category value used for task-linked
// entries. Category-linked entries must not reuse it.
const (
	CategoryTaskWork      = "task_work"
	CategoryTaskWorkLabel = "Task Work"
)

// Assignment carries the optional ServiceNow linkage of a block: either a
// task link or a category link, plus a time-code classification. The JSON
// field names match the stored block layout.
type Assignment struct {
	SelectionType        string `json:"snSelectionType,omitempty"`
	TaskSysID            string `json:"snTaskSysId,omitempty"`
	TaskNumber           string `json:"snTaskNumber,omitempty"`
	TaskShortDescription string `json:"snTaskShortDescription,omitempty"`
	CategorySysID        string `json:"snCategorySysId,omitempty"`
	CategoryValue        string `json:"snCategoryValue,omitempty"`
	CategoryLabel        string `json:"snCategoryLabel,omitempty"`
	CommentText          string `json:"snCommentText,omitempty"`
	CodeSysID            string `json:"snCodeSysId,omitempty"`
	CodeValue            string `json:"snCodeValue,omitempty"`
	CodeDescription      string `json:"snCodeDescription,omitempty"`
}

// TimeBlock is one immutable interval record of work on a task.
// id, source, and createdAtMs are frozen at creation; durationMs is always
// derived from endMs-startMs and never stored independently of its inputs.
type TimeBlock struct {
	ID          string `json:"id"`
	Task        string `json:"task"`
	StartMs     int64  `json:"startMs"`
	EndMs       int64  `json:"endMs"`
	DurationMs  int64  `json:"durationMs"`
	Source      Source `json:"source"`
	CreatedAtMs int64  `json:"createdAtMs"`
	Assignment
}

// Update holds the mutable fields of a block. Applying an update re-runs
// the same validation as creation and recomputes durationMs.
type Update struct {
	Task       string
	StartMs    int64
	EndMs      int64
	Assignment Assignment
}

// New creates a validated block. The id is generated and never reused.
func New(task string, startMs, endMs int64, source Source, asgn Assignment) (TimeBlock, error) {
	b := TimeBlock{
		ID:          randid.Generate(16),
		Task:        strings.TrimSpace(task),
		StartMs:     startMs,
		EndMs:       endMs,
		DurationMs:  endMs - startMs,
		Source:      source,
		CreatedAtMs: time.Now().UnixMilli(),
		Assignment:  asgn,
	}
	if err := b.Validate(); err != nil {
		return TimeBlock{}, err
	}
	return b, nil
}

// Validate checks the task/time invariants of the block.
func (b TimeBlock) Validate() error {
	if strings.TrimSpace(b.Task) == "" {
		return &ValidationError{Field: "task", Message: "task name is required"}
	}
	if b.EndMs <= b.StartMs {
		return &ValidationError{Field: "endMs", Message: "end time must be after start time"}
	}
	if b.DurationMs != b.EndMs-b.StartMs {
		return &ValidationError{Field: "durationMs", Message: "duration must equal endMs-startMs"}
	}
	return nil
}

// Apply returns a copy of the block with the update applied. Frozen fields
// (id, source, createdAtMs) are preserved.
func (b TimeBlock) Apply(u Update) (TimeBlock, error) {
	next := b
	next.Task = strings.TrimSpace(u.Task)
	next.StartMs = u.StartMs
	next.EndMs = u.EndMs
	next.DurationMs = u.EndMs - u.StartMs
	next.Assignment = u.Assignment

	if err := next.Validate(); err != nil {
		return TimeBlock{}, err
	}
	return next, nil
}

// Linked reports whether the block carries any ServiceNow assignment.
func (a Assignment) Linked() bool {
	return a.SelectionType != SelectionNone
}

// SelectionKey disambiguates how a block is linked for sync grouping:
// task-linked blocks key on the task sys_id, category-linked blocks on the
// category sys_id (falling back to the value), unlinked blocks share "".
func (a Assignment) SelectionKey() string {
	switch a.SelectionType {
	case SelectionTask:
		return "task:" + a.TaskSysID
	case SelectionCategory:
		if a.CategorySysID != "" {
			return "category:" + a.CategorySysID
		}
		return "category:" + a.CategoryValue
	default:
		return ""
	}
}

// Validate checks the assignment shape required when ServiceNow sync is
// enabled: either a task link or a category link, plus a time code.
// Category links additionally need a non-empty comment and must not reuse
// the reserved task-work category value.
func (a Assignment) Validate() error {
	switch a.SelectionType {
	case SelectionTask:
		if a.TaskSysID == "" {
			return &ValidationError{Field: "snTaskSysId", Message: "an assigned task is required"}
		}
	case SelectionCategory:
		if a.CategoryValue == "" {
			return &ValidationError{Field: "snCategoryValue", Message: "a category is required"}
		}
		if a.CategoryValue == CategoryTaskWork {
			return &ValidationError{Field: "snCategoryValue", Message: "category task_work is reserved for task-linked entries"}
		}
		if strings.TrimSpace(a.CommentText) == "" {
			return &ValidationError{Field: "snCommentText", Message: "notes are required when a category is selected"}
		}
	default:
		return &ValidationError{Field: "snSelectionType", Message: "an assigned task or category is required"}
	}

	if a.CodeSysID == "" {
		return &ValidationError{Field: "snCodeSysId", Message: "a time code is required"}
	}
	return nil
}
