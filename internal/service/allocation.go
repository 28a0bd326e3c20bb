package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"parkgate/internal/events"
	"parkgate/internal/models"
	"parkgate/internal/parkerr"
	"parkgate/internal/repository"
)

// AllocationService owns the slot inventory and reacts to lifecycle events.
type AllocationService struct {
	slots  repository.SlotStore
	logger *zap.Logger
}

// NewAllocationService builds the service.
func NewAllocationService(slots repository.SlotStore, logger *zap.Logger) *AllocationService {
	return &AllocationService{slots: slots, logger: logger}
}

// Consume routes bus events to the typed handlers.
func (s *AllocationService) Consume(ctx context.Context, evt events.Event) error {
	switch e := evt.(type) {
	case events.VehicleEntered:
		return s.handleEntered(ctx, e)
	case events.VehicleExited:
		return s.handleExited(ctx, e)
	default:
		return nil
	}
}

func (s *AllocationService) handleEntered(ctx context.Context, evt events.VehicleEntered) error {
	slot, err := s.slots.Allocate(ctx, evt.VehicleNumber)
	if errors.Is(err, parkerr.ErrNoFreeSlot) {
		// Degraded condition: the session stays recorded without a slot and
		// an operator has to reconcile. Retrying cannot conjure a free slot,
		// so the event is not handed back to the bus.
		s.logger.Error("no free slot for entered vehicle",
			zap.String("vehicle_number", evt.VehicleNumber),
			zap.Time("entry_time", evt.EntryTime),
		)
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("slot allocated",
		zap.String("slot_code", slot.SlotCode),
		zap.String("vehicle_number", evt.VehicleNumber),
	)
	return nil
}

func (s *AllocationService) handleExited(ctx context.Context, evt events.VehicleExited) error {
	slot, err := s.slots.Release(ctx, evt.VehicleNumber)
	if err != nil {
		return err
	}
	if slot == nil {
		// Entry never got a slot, or this is a redelivery. Freeing is idempotent.
		s.logger.Debug("no slot recorded for exited vehicle",
			zap.String("vehicle_number", evt.VehicleNumber),
		)
		return nil
	}

	s.logger.Info("slot freed",
		zap.String("slot_code", slot.SlotCode),
		zap.String("vehicle_number", evt.VehicleNumber),
	)
	return nil
}

// Slots returns the inventory snapshot for the HTTP surface.
func (s *AllocationService) Slots(ctx context.Context) ([]models.Slot, error) {
	return s.slots.List(ctx)
}
