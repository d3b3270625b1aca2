package router

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches any *NotFoundError.
	ErrNotFound = errors.New("system not found")
	// ErrUnreachable matches any *UnreachableError.
	ErrUnreachable = errors.New("no route")
)

// NotFoundError is returned when a name does not identify a node in the graph.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("system %q not found", e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// UnreachableError is returned when both endpoints exist but no path connects
// them, or every path exceeds the cutoff.
type UnreachableError struct {
	From   string
	To     string
	Cutoff *float64
}

func (e *UnreachableError) Error() string {
	if e.Cutoff != nil {
		return fmt.Sprintf("no route from %q to %q within cost %g", e.From, e.To, *e.Cutoff)
	}
	return fmt.Sprintf("no route from %q to %q", e.From, e.To)
}

func (e *UnreachableError) Is(target error) bool { return target == ErrUnreachable }
