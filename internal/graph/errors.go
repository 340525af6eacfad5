package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationKind names a class of content validation failure.
type ValidationKind string

const (
	KindDanglingReference   ValidationKind = "DanglingReference"
	KindSelfLoop            ValidationKind = "SelfLoop"
	KindPrerequisiteCycle   ValidationKind = "PrerequisiteCycle"
	KindDuplicateID         ValidationKind = "DuplicateID"
	KindInvalidField        ValidationKind = "InvalidField"
	KindUnknownNodeInPath   ValidationKind = "UnknownNodeInPath"
	KindEmptyPath           ValidationKind = "EmptyPath"
	KindDuplicateNodeInPath ValidationKind = "DuplicateNodeInPath"
)

// ValidationError reports content that cannot be served. IDs names the
// offending node, relationship or path ids; for a prerequisite cycle it is
// the cycle in traversal order.
type ValidationError struct {
	Kind   ValidationKind
	IDs    []string
	Detail string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, strings.Join(e.IDs, ", "))
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// HasKind reports whether err, or any error in its tree (wrapped or
// joined), is a *ValidationError of the given kind.
func HasKind(err error, kind ValidationKind) bool {
	if err == nil {
		return false
	}
	if ve, ok := err.(*ValidationError); ok && ve.Kind == kind {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return HasKind(u.Unwrap(), kind)
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if HasKind(e, kind) {
				return true
			}
		}
	}
	return false
}

// ErrNotFound is matched by every *NotFoundError.
var ErrNotFound = errors.New("not found")

// NotFoundError reports an unknown node, path or course id.
type NotFoundError struct {
	Kind string // "node", "path", "course"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %q", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ErrCourseMismatch is matched by every *CourseMismatchError.
var ErrCourseMismatch = errors.New("course mismatch")

// CourseMismatchError reports progress or content belonging to a different
// course than the graph it is used with.
type CourseMismatchError struct {
	Want string
	Got  string
}

func (e *CourseMismatchError) Error() string {
	return fmt.Sprintf("course mismatch: graph is %q, got %q", e.Want, e.Got)
}

func (e *CourseMismatchError) Is(target error) bool { return target == ErrCourseMismatch }
