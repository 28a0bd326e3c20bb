package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"parkgate/internal/events"
)

// Notification is one user-facing notice.
type Notification struct {
	Kind          string    `json:"kind"`
	VehicleNumber string    `json:"vehicle_number"`
	Message       string    `json:"message"`
	At            time.Time `json:"at"`
}

// Notifier delivers a notification over one transport.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

// Send implements Notifier.
func (f NotifierFunc) Send(ctx context.Context, n Notification) error { return f(ctx, n) }

// NotificationService composes entry/exit notices and fans them out to its
// notifiers. Delivery is best-effort: transport failures are logged and
// swallowed, never handed back to the bus.
type NotificationService struct {
	notifiers []Notifier
	logger    *zap.Logger
}

// NewNotificationService builds the service.
func NewNotificationService(logger *zap.Logger, notifiers ...Notifier) *NotificationService {
	return &NotificationService{notifiers: notifiers, logger: logger}
}

// Consume routes bus events to message composition.
func (s *NotificationService) Consume(ctx context.Context, evt events.Event) error {
	switch e := evt.(type) {
	case events.VehicleEntered:
		s.send(ctx, Notification{
			Kind:          "entry",
			VehicleNumber: e.VehicleNumber,
			Message:       fmt.Sprintf("Vehicle %s entered at %s. Welcome!", e.VehicleNumber, e.EntryTime.Format(time.RFC3339)),
			At:            e.EntryTime,
		})
	case events.VehicleExited:
		s.send(ctx, Notification{
			Kind:          "exit",
			VehicleNumber: e.VehicleNumber,
			Message:       fmt.Sprintf("Vehicle %s has exited. Thank you for visiting!", e.VehicleNumber),
			At:            e.ExitTime,
		})
	}
	return nil
}

func (s *NotificationService) send(ctx context.Context, n Notification) {
	for _, notifier := range s.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			s.logger.Warn("notification delivery failed",
				zap.String("kind", n.Kind),
				zap.String("vehicle_number", n.VehicleNumber),
				zap.Error(err),
			)
		}
	}
}

// NewLogNotifier writes notices to the service log. It is the fallback
// transport when no client is connected to the websocket feed.
func NewLogNotifier(logger *zap.Logger) Notifier {
	return NotifierFunc(func(ctx context.Context, n Notification) error {
		logger.Info("notification",
			zap.String("kind", n.Kind),
			zap.String("vehicle_number", n.VehicleNumber),
			zap.String("message", n.Message),
		)
		return nil
	})
}
