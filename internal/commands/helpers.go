package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/colonyops/tempo/internal/core/servicenow"
	"github.com/colonyops/tempo/internal/core/styles"
	"github.com/colonyops/tempo/internal/core/timeblock"
	"github.com/colonyops/tempo/internal/tempo"
	"github.com/colonyops/tempo/pkg/iojson"
)

// rangeFlags are the shared --range/--from/--to values.
type rangeFlags struct {
	Preset string
	From   string
	To     string
}

// window resolves the flags into a concrete time window. An explicit
// --from/--to pair implies the custom preset.
func (rf rangeFlags) window() (tempo.Window, error) {
	preset := rf.Preset
	if preset == "" {
		preset = "all"
	}
	if rf.From != "" || rf.To != "" {
		preset = "custom"
	}
	return tempo.ResolveWindow(preset, time.Now(), rf.From, rf.To)
}

// assignmentFlags are the shared ServiceNow linkage values.
type assignmentFlags struct {
	TaskSysID     string
	CategoryValue string
	Comment       string
	CodeSysID     string
}

// assignment builds the block linkage from the flags. Linking a task and
// a category at once is rejected; full validation happens in the app.
func (af assignmentFlags) assignment() (timeblock.Assignment, error) {
	if af.TaskSysID != "" && af.CategoryValue != "" {
		return timeblock.Assignment{}, fmt.Errorf("--sn-task and --sn-category are mutually exclusive")
	}

	asgn := timeblock.Assignment{
		CommentText: af.Comment,
		CodeSysID:   af.CodeSysID,
	}
	switch {
	case af.TaskSysID != "":
		asgn.SelectionType = timeblock.SelectionTask
		asgn.TaskSysID = af.TaskSysID
	case af.CategoryValue != "":
		asgn.SelectionType = timeblock.SelectionCategory
		asgn.CategoryValue = af.CategoryValue
	}
	return asgn, nil
}

// filterByTaskGlob keeps blocks whose task matches the doublestar pattern.
// An empty pattern keeps everything.
func filterByTaskGlob(blocks []timeblock.TimeBlock, pattern string) ([]timeblock.TimeBlock, error) {
	if pattern == "" {
		return blocks, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid task pattern %q", pattern)
	}

	kept := blocks[:0:0]
	for _, b := range blocks {
		ok, err := doublestar.Match(pattern, b.Task)
		if err != nil {
			return nil, fmt.Errorf("match task pattern: %w", err)
		}
		if ok {
			kept = append(kept, b)
		}
	}
	return kept, nil
}

// parseLocalTime accepts "2006-01-02 15:04" or "2006-01-02T15:04" in
// local time and returns epoch milliseconds.
func parseLocalTime(value string) (int64, error) {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("cannot parse time %q, use YYYY-MM-DD HH:MM", value)
}

// emit writes either the JSON envelope or the human line.
func emit(jsonOut bool, result iojson.Result, human string) error {
	if jsonOut {
		return iojson.Write(result)
	}
	if human != "" {
		fmt.Println(human)
	}
	return nil
}

// emitError reports a failure in the requested format. ServiceNow errors
// keep their code and recovery hint.
func emitError(jsonOut bool, err error) error {
	if jsonOut {
		code := ""
		var snErr *servicenow.Error
		if errors.As(err, &snErr) {
			code = string(snErr.Code)
		}
		return iojson.Write(iojson.Failure(code, err.Error()))
	}

	fmt.Fprintln(os.Stderr, styles.Error.Render(err.Error()))
	if hint := servicenow.HintOf(err); hint != "" {
		fmt.Fprintln(os.Stderr, styles.Muted.Render(hint))
	}
	return err
}
