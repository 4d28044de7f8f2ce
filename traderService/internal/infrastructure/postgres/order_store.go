package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	repositoryErrors "github.com/nastyazhadan/perp-trader/shared/errors/repository"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
	"github.com/nastyazhadan/perp-trader/traderService/internal/infrastructure/postgres/dto"
)

// OrderStore mirrors the ledger into postgres. The row for a hash is
// replaced on every transition.
type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{
		pool: pool,
	}
}

func (o *OrderStore) UpsertOrder(ctx context.Context, order models.Order) error {
	const op = "infrastructure.OrderStore.UpsertOrder"

	orderDTO := dto.FromDomain(order)

	_, err := o.pool.Exec(ctx,
		`INSERT INTO orders (hash, symbol, side, order_type, quantity, price, leverage, reduce_only, status,
                             settlement_status, requeue_count, cancelled, fill_price, matched_quantity, is_maker,
                             created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5::text::numeric, $6::text::numeric, $7, $8, $9,
                 $10, $11, $12, $13::text::numeric, $14::text::numeric, $15, $16, now())
         ON CONFLICT (hash) DO UPDATE SET
             price             = EXCLUDED.price,
             status            = EXCLUDED.status,
             settlement_status = EXCLUDED.settlement_status,
             requeue_count     = EXCLUDED.requeue_count,
             cancelled         = EXCLUDED.cancelled,
             fill_price        = EXCLUDED.fill_price,
             matched_quantity  = EXCLUDED.matched_quantity,
             is_maker          = EXCLUDED.is_maker,
             updated_at        = now()`,
		orderDTO.Hash,
		orderDTO.Symbol,
		orderDTO.Side,
		orderDTO.OrderType,
		orderDTO.Quantity,
		orderDTO.Price,
		orderDTO.Leverage,
		orderDTO.ReduceOnly,
		orderDTO.Status,
		orderDTO.SettlementStatus,
		orderDTO.RequeueCount,
		orderDTO.Cancelled,
		orderDTO.FillPrice,
		orderDTO.MatchedQuantity,
		orderDTO.IsMaker,
		orderDTO.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: exec: %w", op, err)
	}

	return nil
}

func (o *OrderStore) GetOrder(ctx context.Context, hash string) (models.Order, error) {
	const op = "infrastructure.OrderStore.GetOrder"

	rows, err := o.pool.Query(ctx,
		`SELECT hash, symbol, side, order_type, quantity::text AS quantity, price::text AS price, leverage,
		        reduce_only, status, settlement_status, requeue_count, cancelled,
		        fill_price::text AS fill_price, matched_quantity::text AS matched_quantity, is_maker, created_at
		 FROM orders
		 WHERE hash = $1
		 LIMIT 1`,
		hash,
	)
	if err != nil {
		return models.Order{}, fmt.Errorf("%s: query: %w", op, err)
	}

	orderDTO, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[dto.Order])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, fmt.Errorf("%s: %w", op, repositoryErrors.ErrOrderNotFound)
		}

		return models.Order{}, fmt.Errorf("%s: collect: %w", op, err)
	}

	order, err := orderDTO.ToDomain()
	if err != nil {
		return models.Order{}, fmt.Errorf("%s: decode: %w", op, err)
	}

	return order, nil
}

// Ping reports whether the pool can reach the database.
func (o *OrderStore) Ping(ctx context.Context) error {
	return o.pool.Ping(ctx)
}
