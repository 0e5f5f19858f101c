package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"salonshop/internal/domain"
	"salonshop/internal/models"
	"salonshop/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memDeliveries struct {
	mu      sync.Mutex
	byID    map[uint]*models.DeliveryAssignment
	taken   map[string]bool
	nextID  uint
	advance []string
}

func newMemDeliveries() *memDeliveries {
	return &memDeliveries{byID: map[uint]*models.DeliveryAssignment{}, taken: map[string]bool{}}
}

func (m *memDeliveries) Assign(orderID string, driverID uint) (*models.DeliveryAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taken[orderID] {
		return nil, repository.ErrOrderUnavailable
	}
	m.taken[orderID] = true
	m.nextID++
	a := &models.DeliveryAssignment{
		ID: m.nextID, OrderID: orderID, DriverID: driverID, Status: domain.DeliveryAssigned,
		Order: models.Order{ID: orderID, CustomerName: "Jane", Status: domain.OrderStatusDispatched},
	}
	m.byID[a.ID] = a
	return a, nil
}

func (m *memDeliveries) GetByID(id uint) (*models.DeliveryAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memDeliveries) ListByDriver(driverID uint, statuses []string) ([]models.DeliveryAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DeliveryAssignment
	for _, a := range m.byID {
		for _, st := range statuses {
			if a.DriverID == driverID && a.Status == st {
				out = append(out, *a)
			}
		}
	}
	return out, nil
}

func (m *memDeliveries) Advance(a *models.DeliveryAssignment, next string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.byID[a.ID]
	if stored.Status != a.Status {
		return repository.ErrOrderUnavailable
	}
	stored.Status = next
	if next == domain.DeliveryDelivered {
		stored.DeliveredAt = &at
		stored.Order.Status = domain.OrderStatusDelivered
	}
	m.advance = append(m.advance, next)
	a.Status = next
	return nil
}

type deliveredNotifier struct{ orders []string }

func (n *deliveredNotifier) NotifyOrderDelivered(_ context.Context, o *models.Order) error {
	n.orders = append(n.orders, o.ID)
	return nil
}

func TestDeliveryService_AcceptOnce(t *testing.T) {
	svc := NewDeliveryService(newMemDeliveries(), nil, nil)

	a, err := svc.Accept("order-1", 7)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryAssigned, a.Status)

	_, err = svc.Accept("order-1", 8)
	assert.ErrorIs(t, err, ErrJobUnavailable)
}

func TestDeliveryService_AdvanceToDelivered(t *testing.T) {
	repo := newMemDeliveries()
	notifier := &deliveredNotifier{}
	svc := NewDeliveryService(repo, nil, notifier)
	a, err := svc.Accept("order-1", 7)
	require.NoError(t, err)

	for _, want := range []string{domain.DeliveryPickedUp, domain.DeliveryInTransit, domain.DeliveryDelivered} {
		got, err := svc.Advance(context.Background(), a.ID, 7)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status)
	}
	assert.Equal(t, []string{"order-1"}, notifier.orders)

	_, err = svc.Advance(context.Background(), a.ID, 7)
	assert.ErrorIs(t, err, ErrDeliveryFinished)

	done, err := svc.Completed(7)
	require.NoError(t, err)
	assert.Len(t, done, 1)
	active, err := svc.Active(7)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestDeliveryService_OtherDriverCannotAdvance(t *testing.T) {
	svc := NewDeliveryService(newMemDeliveries(), nil, nil)
	a, err := svc.Accept("order-1", 7)
	require.NoError(t, err)

	_, err = svc.Advance(context.Background(), a.ID, 9)
	assert.ErrorIs(t, err, ErrDeliveryNotFound)
	_, err = svc.Advance(context.Background(), 999, 7)
	assert.ErrorIs(t, err, ErrDeliveryNotFound)
}
