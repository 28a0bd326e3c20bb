package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"parkgate/internal/events"
	"parkgate/internal/models"
	"parkgate/internal/repository"
)

// Tariff holds the billing configuration.
type Tariff struct {
	HourlyRate  float64
	MinimumFare float64
}

// BillingService turns exited events into invoices, exactly once per
// closed session.
type BillingService struct {
	invoices repository.InvoiceStore
	tariff   Tariff
	logger   *zap.Logger
}

// NewBillingService builds the service.
func NewBillingService(invoices repository.InvoiceStore, tariff Tariff, logger *zap.Logger) *BillingService {
	if tariff.HourlyRate <= 0 {
		tariff.HourlyRate = 50
	}
	if tariff.MinimumFare < 0 {
		tariff.MinimumFare = 20
	}
	return &BillingService{invoices: invoices, tariff: tariff, logger: logger}
}

// Consume routes bus events; only exits are billable.
func (s *BillingService) Consume(ctx context.Context, evt events.Event) error {
	exited, ok := evt.(events.VehicleExited)
	if !ok {
		return nil
	}
	return s.handleExited(ctx, exited)
}

func (s *BillingService) handleExited(ctx context.Context, evt events.VehicleExited) error {
	amount := s.Amount(evt.EntryTime, evt.ExitTime)
	invoice := &models.Invoice{
		VehicleNumber: evt.VehicleNumber,
		Amount:        amount,
		IssuedAt:      evt.ExitTime,
	}

	created, err := s.invoices.Create(ctx, invoice)
	if err != nil {
		return err
	}
	if !created {
		s.logger.Debug("exit already billed",
			zap.String("vehicle_number", evt.VehicleNumber),
			zap.Time("exit_time", evt.ExitTime),
		)
		return nil
	}

	s.logger.Info("invoice created",
		zap.String("vehicle_number", evt.VehicleNumber),
		zap.Float64("amount", amount),
		zap.Time("entry_time", evt.EntryTime),
		zap.Time("exit_time", evt.ExitTime),
	)
	return nil
}

// Amount computes the fare: whole minutes parked, charged per hour, floored
// at the minimum fare.
func (s *BillingService) Amount(entryTime, exitTime time.Time) float64 {
	minutes := exitTime.Sub(entryTime) / time.Minute
	if minutes < 0 {
		minutes = 0
	}
	amount := float64(minutes) / 60.0 * s.tariff.HourlyRate
	if amount < s.tariff.MinimumFare {
		amount = s.tariff.MinimumFare
	}
	return amount
}

// TotalBilled sums all invoices for the reporting surface.
func (s *BillingService) TotalBilled(ctx context.Context) (float64, error) {
	return s.invoices.TotalAmount(ctx)
}
