package timeblock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	b, err := New("  deep work  ", 1000, 4000, SourceManual, Assignment{})
	require.NoError(t, err)

	assert.Equal(t, "deep work", b.Task)
	assert.Equal(t, int64(3000), b.DurationMs)
	assert.Equal(t, SourceManual, b.Source)
	assert.Len(t, b.ID, 16)
	assert.NotZero(t, b.CreatedAtMs)
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		task    string
		startMs int64
		endMs   int64
		field   string
	}{
		{"empty task", "", 0, 1000, "task"},
		{"whitespace task", "   ", 0, 1000, "task"},
		{"end equals start", "t", 1000, 1000, "endMs"},
		{"end before start", "t", 2000, 1000, "endMs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.task, tt.startMs, tt.endMs, SourceManual, Assignment{})
			require.Error(t, err)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestApply_RecomputesDurationAndFreezesIdentity(t *testing.T) {
	b, err := New("task", 1000, 2000, SourceTimer, Assignment{})
	require.NoError(t, err)

	updated, err := b.Apply(Update{Task: "renamed", StartMs: 5000, EndMs: 9000})
	require.NoError(t, err)

	assert.Equal(t, b.ID, updated.ID)
	assert.Equal(t, b.Source, updated.Source)
	assert.Equal(t, b.CreatedAtMs, updated.CreatedAtMs)
	assert.Equal(t, "renamed", updated.Task)
	assert.Equal(t, int64(4000), updated.DurationMs)
}

func TestApply_Invalid(t *testing.T) {
	b, err := New("task", 1000, 2000, SourceTimer, Assignment{})
	require.NoError(t, err)

	_, err = b.Apply(Update{Task: "task", StartMs: 2000, EndMs: 2000})
	assert.True(t, IsValidation(err))
}

func TestAssignment_Validate(t *testing.T) {
	tests := []struct {
		name    string
		asgn    Assignment
		wantErr string
	}{
		{
			name:    "no selection",
			asgn:    Assignment{},
			wantErr: "snSelectionType",
		},
		{
			name:    "task link missing sys id",
			asgn:    Assignment{SelectionType: SelectionTask},
			wantErr: "snTaskSysId",
		},
		{
			name:    "task link missing code",
			asgn:    Assignment{SelectionType: SelectionTask, TaskSysID: "abc"},
			wantErr: "snCodeSysId",
		},
		{
			name: "task link complete",
			asgn: Assignment{SelectionType: SelectionTask, TaskSysID: "abc", CodeSysID: "code1"},
		},
		{
			name:    "category missing value",
			asgn:    Assignment{SelectionType: SelectionCategory},
			wantErr: "snCategoryValue",
		},
		{
			name:    "category reuses reserved value",
			asgn:    Assignment{SelectionType: SelectionCategory, CategoryValue: CategoryTaskWork, CommentText: "x"},
			wantErr: "snCategoryValue",
		},
		{
			name:    "category missing comment",
			asgn:    Assignment{SelectionType: SelectionCategory, CategoryValue: "admin", CodeSysID: "c"},
			wantErr: "snCommentText",
		},
		{
			name: "category complete",
			asgn: Assignment{SelectionType: SelectionCategory, CategoryValue: "admin", CommentText: "weekly admin", CodeSysID: "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.asgn.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantErr, ve.Field)
		})
	}
}

func TestSelectionKey(t *testing.T) {
	assert.Equal(t, "", Assignment{}.SelectionKey())
	assert.Equal(t, "task:t1", Assignment{SelectionType: SelectionTask, TaskSysID: "t1"}.SelectionKey())
	assert.Equal(t, "category:c1", Assignment{SelectionType: SelectionCategory, CategorySysID: "c1"}.SelectionKey())
	assert.Equal(t, "category:admin", Assignment{SelectionType: SelectionCategory, CategoryValue: "admin"}.SelectionKey())
}
