package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	repositoryErrors "github.com/nastyazhadan/perp-trader/shared/errors/repository"
	serviceErrors "github.com/nastyazhadan/perp-trader/shared/errors/service"
	"github.com/nastyazhadan/perp-trader/shared/errors/storage"
	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

const (
	// TransitionCreated names the registration of a new order.
	TransitionCreated = "OrderCreated"
	// TransitionCancelled names a cancel requested by the engine.
	TransitionCancelled = "OrderCancelled"
)

type Store interface {
	SaveOrder(ctx context.Context, order models.Order) error
	GetOrder(ctx context.Context, hash string) (models.Order, error)
	UpdateOrder(ctx context.Context, hash string, mutate func(*models.Order) error) (models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
}

// Mirror persists ledger state outside the process. Orders from earlier
// runs are looked up there.
type Mirror interface {
	UpsertOrder(ctx context.Context, order models.Order) error
	GetOrder(ctx context.Context, hash string) (models.Order, error)
}

// Publisher announces ledger transitions.
type Publisher interface {
	PublishOrder(ctx context.Context, transition string, order models.Order) error
}

// Service is the order ledger. The store is authoritative; the mirror and
// the publisher are written after every transition and their failures are
// only logged.
type Service struct {
	store     Store
	mirror    Mirror
	publisher Publisher
}

func NewService(store Store, mirror Mirror, publisher Publisher) *Service {
	return &Service{
		store:     store,
		mirror:    mirror,
		publisher: publisher,
	}
}

func (s *Service) Register(ctx context.Context, order models.Order) error {
	const op = "Service.Register"

	if err := s.store.SaveOrder(ctx, order); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.writeThrough(ctx, TransitionCreated, order)
	return nil
}

func (s *Service) Get(ctx context.Context, hash string) (models.Order, error) {
	const op = "Service.Get"

	order, err := s.store.GetOrder(ctx, hash)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, storage.ErrOrderNotFound) {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}
	if s.mirror == nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrOrderNotFound)
	}

	order, err = s.mirror.GetOrder(ctx, hash)
	if err != nil {
		if errors.Is(err, repositoryErrors.ErrOrderNotFound) {
			return models.Order{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrOrderNotFound)
		}
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	return order, nil
}

func (s *Service) List(ctx context.Context) ([]models.Order, error) {
	const op = "Service.List"

	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return orders, nil
}

// Update applies one transition atomically for hash.
func (s *Service) Update(ctx context.Context, hash, transition string, mutate func(*models.Order) error) (models.Order, error) {
	const op = "Service.Update"

	order, err := s.store.UpdateOrder(ctx, hash, mutate)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return models.Order{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrOrderNotFound)
		}
		return order, fmt.Errorf("%s: %w", op, err)
	}

	s.writeThrough(ctx, transition, order)
	return order, nil
}

// Cancel flags the order cancelled. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, hash string) (models.Order, error) {
	const op = "Service.Cancel"

	order, err := s.Update(ctx, hash, TransitionCancelled, func(order *models.Order) error {
		return order.ApplyCancel()
	})
	if err != nil {
		return order, fmt.Errorf("%s: %w", op, err)
	}

	return order, nil
}

func (s *Service) writeThrough(ctx context.Context, transition string, order models.Order) {
	if s.mirror != nil {
		if err := s.mirror.UpsertOrder(ctx, order); err != nil {
			zapLogger.Warn(ctx, "order mirror write failed",
				zap.String("order_hash", order.Hash),
				zap.String("transition", transition),
				zap.Error(err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishOrder(ctx, transition, order); err != nil {
			zapLogger.Warn(ctx, "order publish failed",
				zap.String("order_hash", order.Hash),
				zap.String("transition", transition),
				zap.Error(err))
		}
	}
}
