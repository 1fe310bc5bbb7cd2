package order

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"ms-orderflow/internal/models"
	"ms-orderflow/internal/order/db"
	"ms-orderflow/internal/saga"
)

// LogStakeCall records the operator's verification call for an order
// flagged stakeCallRequired. Presence of the record is what the
// fulfillment gate checks; notes are free-form but must be non-empty.
func (s *Service) LogStakeCall(ctx context.Context, actor models.Actor, orderID, notes string) (*models.StakeCall, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, &saga.Error{Code: CodeInvalidStakeCall, Message: "stake call notes must not be empty"}
	}

	if _, err := s.deps.DB.GetOrderByID(ctx, orderID); err != nil {
		if err == db.ErrNotFound {
			return nil, &saga.Error{Code: CodeOrderNotFound, Message: "order not found"}
		}
		return nil, err
	}

	existing, err := s.deps.DB.GetStakeCallByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &saga.Error{Code: CodeStakeCallExists, Message: "a stake call is already logged for this order"}
	}

	call := &models.StakeCall{
		ID:       uuid.NewString(),
		OrderID:  orderID,
		ActorID:  actor.ID,
		Notes:    notes,
		CalledAt: s.now().UTC(),
	}
	if err := s.deps.DB.CreateStakeCall(ctx, call); err != nil {
		return nil, err
	}

	s.deps.Audit.Record(models.AuditEvent{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "LOG_STAKE_CALL",
		EntityType: "order",
		EntityID:   orderID,
		Result:     models.AuditSuccess,
	})
	return call, nil
}
