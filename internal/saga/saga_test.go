package saga_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-orderflow/internal/saga"
)

type counterState struct {
	ran []string
}

func TestRunExecutesStepsInOrder(t *testing.T) {
	record := func(name string) saga.Step[counterState] {
		return saga.Step[counterState]{
			Name: name,
			Run: func(_ context.Context, st *counterState) *saga.Error {
				st.ran = append(st.ran, name)
				return nil
			},
		}
	}

	st := &counterState{}
	serr := saga.Run(context.Background(), st, []saga.Step[counterState]{
		record("first"), record("second"), record("third"),
	}, nil)

	assert.Nil(t, serr)
	assert.Equal(t, []string{"first", "second", "third"}, st.ran)
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	var failedStep string
	st := &counterState{}

	serr := saga.Run(context.Background(), st, []saga.Step[counterState]{
		{Name: "ok", Run: func(_ context.Context, s *counterState) *saga.Error {
			s.ran = append(s.ran, "ok")
			return nil
		}},
		{Name: "boom", Run: func(_ context.Context, s *counterState) *saga.Error {
			return &saga.Error{Code: "BOOM", Message: "failed"}
		}},
		{Name: "never", Run: func(_ context.Context, s *counterState) *saga.Error {
			s.ran = append(s.ran, "never")
			return nil
		}},
	}, func(step string, _ *saga.Error) {
		failedStep = step
	})

	assert.NotNil(t, serr)
	assert.Equal(t, "BOOM", serr.Code)
	assert.Equal(t, "boom", failedStep)
	assert.Equal(t, []string{"ok"}, st.ran)
}

func TestErrorString(t *testing.T) {
	serr := &saga.Error{Code: "ORDER_BLOCKED", Message: "order blocked by compliance", Reasons: []string{"CA_FLAVOR_BAN", "PO_BOX_NOT_ALLOWED"}}
	assert.Equal(t, "ORDER_BLOCKED: order blocked by compliance [CA_FLAVOR_BAN, PO_BOX_NOT_ALLOWED]", serr.Error())
	assert.Equal(t, "CA_FLAVOR_BAN,PO_BOX_NOT_ALLOWED", serr.ReasonString())

	plain := &saga.Error{Code: "NO_ORDERS_FOUND", Message: "nothing shipped"}
	assert.Equal(t, "NO_ORDERS_FOUND: nothing shipped", plain.Error())
	assert.Equal(t, "NO_ORDERS_FOUND", plain.ReasonString())
}
