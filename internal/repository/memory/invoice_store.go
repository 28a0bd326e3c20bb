package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"parkgate/internal/models"
)

// InvoiceStore keeps billing records in memory. The dedup check and the
// insert share one critical section, so concurrent redelivery of the same
// exited event cannot bill twice.
type InvoiceStore struct {
	mu       sync.Mutex
	invoices []*models.Invoice
	billed   map[string]struct{}
	nextID   int64
}

// NewInvoiceStore returns an empty store.
func NewInvoiceStore() *InvoiceStore {
	return &InvoiceStore{
		billed: make(map[string]struct{}),
		nextID: 1,
	}
}

func dedupKey(vehicleNumber string, issuedAt time.Time) string {
	return fmt.Sprintf("%s|%s", vehicleNumber, issuedAt.UTC().Format(time.RFC3339Nano))
}

// Create inserts the invoice unless the (vehicle, issued-at) pair is billed already.
func (s *InvoiceStore) Create(ctx context.Context, invoice *models.Invoice) (bool, error) {
	key := dedupKey(invoice.VehicleNumber, invoice.IssuedAt)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.billed[key]; ok {
		return false, nil
	}

	invoice.ID = s.nextID
	s.nextID++
	invoice.CreatedAt = time.Now().UTC()
	s.invoices = append(s.invoices, invoice)
	s.billed[key] = struct{}{}
	return true, nil
}

// TotalAmount sums all invoices.
func (s *InvoiceStore) TotalAmount(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, inv := range s.invoices {
		total += inv.Amount
	}
	return total, nil
}

// List returns invoices, newest first.
func (s *InvoiceStore) List(ctx context.Context, limit int) ([]models.Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Invoice
	for i := len(s.invoices) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *s.invoices[i])
	}
	return out, nil
}
