// Package saga provides the shared machinery for the order lifecycle
// orchestrations: a structured terminal error carrying a stable code and
// the full list of contributing reasons, and a step runner that executes
// an ordered step list with audit-on-failure handled in one place.
package saga

import (
	"context"
	"fmt"
	"strings"
)

// Error is the terminal error returned by a saga step. Reconciliation
// marks failures where an external side effect already succeeded (payment
// captured or authorized) so a blind retry would double-charge; callers
// must route those to an operator instead of retrying.
type Error struct {
	Code           string
	Message        string
	Reasons        []string
	Reconciliation bool
	Err            error
}

func (e *Error) Error() string {
	if len(e.Reasons) > 0 {
		return fmt.Sprintf("%s: %s [%s]", e.Code, e.Message, strings.Join(e.Reasons, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonString joins the reason list for audit records.
func (e *Error) ReasonString() string {
	if len(e.Reasons) == 0 {
		return e.Code
	}
	return strings.Join(e.Reasons, ",")
}

// Step is one named unit of a saga. Run mutates the saga's state value
// and returns a terminal *Error, or nil to continue.
type Step[S any] struct {
	Name string
	Run  func(ctx context.Context, state *S) *Error
}

// Run executes steps strictly in order and stops at the first failure.
// onFailure is invoked with the failing step's name before the error is
// returned; it is where the audit write on the failure path lives.
func Run[S any](ctx context.Context, state *S, steps []Step[S], onFailure func(step string, serr *Error)) *Error {
	for _, st := range steps {
		if serr := st.Run(ctx, state); serr != nil {
			if onFailure != nil {
				onFailure(st.Name, serr)
			}
			return serr
		}
	}
	return nil
}
