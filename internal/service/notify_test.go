package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"parkgate/internal/events"
	"parkgate/internal/service"
)

type capturingNotifier struct {
	mu   sync.Mutex
	sent []service.Notification
}

func (n *capturingNotifier) Send(ctx context.Context, notification service.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func TestNotificationsComposedForBothEvents(t *testing.T) {
	captured := &capturingNotifier{}
	notify := service.NewNotificationService(zap.NewNop(), captured)
	ctx := context.Background()

	entryTime := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, notify.Consume(ctx, events.VehicleEntered{VehicleNumber: "KA-01", EntryTime: entryTime}))
	require.NoError(t, notify.Consume(ctx, events.VehicleExited{VehicleNumber: "KA-01", EntryTime: entryTime, ExitTime: entryTime.Add(time.Hour)}))

	require.Len(t, captured.sent, 2)
	require.Equal(t, "entry", captured.sent[0].Kind)
	require.Contains(t, captured.sent[0].Message, "KA-01")
	require.Contains(t, captured.sent[0].Message, "Welcome")
	require.Equal(t, "exit", captured.sent[1].Kind)
	require.Contains(t, captured.sent[1].Message, "Thank you")
}

func TestNotifierFailureIsSwallowed(t *testing.T) {
	captured := &capturingNotifier{}
	failing := service.NotifierFunc(func(ctx context.Context, n service.Notification) error {
		return errors.New("transport down")
	})
	notify := service.NewNotificationService(zap.NewNop(), failing, captured)

	err := notify.Consume(context.Background(), events.VehicleEntered{
		VehicleNumber: "KA-01",
		EntryTime:     time.Now().UTC(),
	})
	require.NoError(t, err)

	// The healthy transport still got the notice.
	require.Len(t, captured.sent, 1)
}
