package domain

import (
	"fmt"
	"sort"
)

// BatchError reports which items of a multi-item write failed. Items not
// listed were written.
type BatchError struct {
	Failed map[string]error
}

func NewBatchError() *BatchError {
	return &BatchError{Failed: make(map[string]error)}
}

func (e *BatchError) Add(id string, err error) {
	e.Failed[id] = err
}

// ErrOrNil returns nil when nothing failed.
func (e *BatchError) ErrOrNil() error {
	if e == nil || len(e.Failed) == 0 {
		return nil
	}
	return e
}

func (e *BatchError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) == 1 {
		return fmt.Sprintf("batch write failed for %s: %v", ids[0], e.Failed[ids[0]])
	}
	return fmt.Sprintf("batch write failed for %d items, first %s: %v", len(ids), ids[0], e.Failed[ids[0]])
}
