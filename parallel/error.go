package parallel

import (
	"fmt"
	"sort"
	"strings"
)

// TaskError captures failure context for a single task's execution within
// a parallel run: its id, and the underlying error (a failed workspace
// creation, a runner error, or a merge conflict).
type TaskError struct {
	TaskID string
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.TaskID, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// GroupError wraps task failures from one parallel group. Its Error()
// message is categorized by underlying error text and sorted by
// frequency, following the teacher's ParallelError convention, and its
// Unwrap supports Go 1.20+ multi-error inspection via errors.Is/As.
type GroupError struct {
	Errors []*TaskError
}

func (e *GroupError) Error() string {
	if len(e.Errors) == 0 {
		return "parallel group failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("parallel group failed: %s", e.Errors[0].Error())
	}

	counts := make(map[string]int)
	for _, te := range e.Errors {
		counts[te.Err.Error()]++
	}

	type summary struct {
		msg   string
		count int
	}
	var summaries []summary
	for msg, count := range counts {
		summaries = append(summaries, summary{msg, count})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].count > summaries[j].count })

	parts := make([]string, 0, len(summaries))
	for _, s := range summaries {
		if s.count == 1 {
			parts = append(parts, fmt.Sprintf("%q (1 task)", s.msg))
		} else {
			parts = append(parts, fmt.Sprintf("%q (%d tasks)", s.msg, s.count))
		}
	}

	return fmt.Sprintf("parallel group failed: %d tasks failed with %d error types: %s",
		len(e.Errors), len(counts), strings.Join(parts, ", "))
}

func (e *GroupError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, te := range e.Errors {
		errs[i] = te.Err
	}
	return errs
}
