package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nastyazhadan/perp-trader/shared/errors/storage"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

type entry struct {
	mu    sync.Mutex
	order models.Order
}

// OrderStore keeps the ledger in memory. Each order hash has its own lock,
// so an update reads, mutates and writes back one order atomically without
// blocking updates to other orders.
type OrderStore struct {
	orders map[string]*entry
	mu     sync.RWMutex
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders: make(map[string]*entry, 1024),
	}
}

func (s *OrderStore) SaveOrder(ctx context.Context, order models.Order) error {
	const op = "storage.OrderStore.SaveOrder"

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if order.Hash == "" {
		return fmt.Errorf("%s: %w", op, storage.ErrOrderHashMissing)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.orders[order.Hash]; found {
		return fmt.Errorf("%s: %w", op, storage.ErrOrderAlreadyExists)
	}

	s.orders[order.Hash] = &entry{order: order}
	return nil
}

func (s *OrderStore) GetOrder(ctx context.Context, hash string) (models.Order, error) {
	const op = "storage.OrderStore.GetOrder"

	select {
	case <-ctx.Done():
		return models.Order{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	found, ok := s.lookup(hash)
	if !ok {
		return models.Order{}, fmt.Errorf("%s: %w", op, storage.ErrOrderNotFound)
	}

	found.mu.Lock()
	defer found.mu.Unlock()

	return found.order, nil
}

// UpdateOrder runs mutate on a copy of the order under the order's lock and
// stores the copy only when mutate succeeds.
func (s *OrderStore) UpdateOrder(ctx context.Context, hash string, mutate func(*models.Order) error) (models.Order, error) {
	const op = "storage.OrderStore.UpdateOrder"

	select {
	case <-ctx.Done():
		return models.Order{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	found, ok := s.lookup(hash)
	if !ok {
		return models.Order{}, fmt.Errorf("%s: %w", op, storage.ErrOrderNotFound)
	}

	found.mu.Lock()
	defer found.mu.Unlock()

	updated := found.order
	if err := mutate(&updated); err != nil {
		return found.order, fmt.Errorf("%s: %w", op, err)
	}

	found.order = updated
	return updated, nil
}

// ListOrders returns every order, oldest first.
func (s *OrderStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	const op = "storage.OrderStore.ListOrders"

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	s.mu.RLock()
	entries := make([]*entry, 0, len(s.orders))
	for _, e := range s.orders {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	result := make([]models.Order, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		result = append(result, e.order)
		e.mu.Unlock()
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Hash < result[j].Hash
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (s *OrderStore) lookup(hash string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found, ok := s.orders[hash]
	return found, ok
}
