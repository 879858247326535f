package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/abastia/kardex-api/internal/domain/entity"
	"github.com/abastia/kardex-api/internal/domain/repository"
)

var _ repository.BalanceRepository = (*BalanceRepo)(nil)

// BalanceRepo implementación del índice de saldos sobre PostgreSQL (usable con pool o tx).
type BalanceRepo struct {
	q Querier
}

// NewBalanceRepository construye el adaptador de saldos. Pasar pool o tx (Querier).
func NewBalanceRepository(q Querier) *BalanceRepo {
	return &BalanceRepo{q: q}
}

// Get obtiene el saldo actual de un producto en una bodega.
func (r *BalanceRepo) Get(ctx context.Context, productID, warehouseID string) (*entity.Balance, error) {
	query := `
		SELECT product_id, warehouse_id, cantidad, ultimo_movimiento_id, version, updated_at
		FROM saldos WHERE product_id = $1 AND warehouse_id = $2`
	return r.get(ctx, query, productID, warehouseID)
}

// GetForUpdate obtiene el saldo y bloquea la fila para update (SELECT FOR UPDATE).
func (r *BalanceRepo) GetForUpdate(ctx context.Context, productID, warehouseID string) (*entity.Balance, error) {
	query := `
		SELECT product_id, warehouse_id, cantidad, ultimo_movimiento_id, version, updated_at
		FROM saldos WHERE product_id = $1 AND warehouse_id = $2
		FOR UPDATE`
	return r.get(ctx, query, productID, warehouseID)
}

func (r *BalanceRepo) get(ctx context.Context, query, productID, warehouseID string) (*entity.Balance, error) {
	var b entity.Balance
	err := r.q.QueryRow(ctx, query, productID, warehouseID).Scan(
		&b.ProductID, &b.WarehouseID, &b.Quantity, &b.LastMovementID, &b.Version, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.ZeroBalance(productID, warehouseID), nil
		}
		return nil, fmt.Errorf("get saldo: %w", err)
	}
	return &b, nil
}

// Upsert inserta o actualiza el saldo del par.
func (r *BalanceRepo) Upsert(ctx context.Context, balance *entity.Balance) error {
	query := `
		INSERT INTO saldos (product_id, warehouse_id, cantidad, ultimo_movimiento_id, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (product_id, warehouse_id)
		DO UPDATE SET cantidad = EXCLUDED.cantidad,
			ultimo_movimiento_id = EXCLUDED.ultimo_movimiento_id,
			version = EXCLUDED.version,
			updated_at = now()`
	_, err := r.q.Exec(ctx, query,
		balance.ProductID, balance.WarehouseID, balance.Quantity,
		balance.LastMovementID, balance.Version,
	)
	if err != nil {
		return fmt.Errorf("upsert saldo: %w", err)
	}
	return nil
}

// ListByWarehouse lista saldos de una bodega con paginación.
func (r *BalanceRepo) ListByWarehouse(ctx context.Context, warehouseID string, limit, offset int) ([]*entity.Balance, error) {
	query := `
		SELECT product_id, warehouse_id, cantidad, ultimo_movimiento_id, version, updated_at
		FROM saldos WHERE warehouse_id = $1
		ORDER BY updated_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, warehouseID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list saldos: %w", err)
	}
	defer rows.Close()
	var list []*entity.Balance
	for rows.Next() {
		var b entity.Balance
		if err := rows.Scan(&b.ProductID, &b.WarehouseID, &b.Quantity,
			&b.LastMovementID, &b.Version, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan saldo: %w", err)
		}
		list = append(list, &b)
	}
	return list, rows.Err()
}

// ListBelowMinimum devuelve los productos cuyo stock actual en la bodega es menor
// que su stock mínimo, ordenados por déficit descendente (mayor quiebre primero).
func (r *BalanceRepo) ListBelowMinimum(ctx context.Context, warehouseID string) ([]repository.LowStockItem, error) {
	query := `
		SELECT
			p.id,
			p.sku,
			p.nombre,
			COALESCE(s.cantidad, 0) AS current_stock,
			p.stock_minimo
		FROM productos p
		LEFT JOIN saldos s ON s.product_id = p.id AND s.warehouse_id = $1
		WHERE p.activo
		  AND p.stock_minimo > 0
		  AND COALESCE(s.cantidad, 0) < p.stock_minimo
		ORDER BY (p.stock_minimo - COALESCE(s.cantidad, 0)) DESC`
	rows, err := r.q.Query(ctx, query, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("list stock bajo mínimo: %w", err)
	}
	defer rows.Close()
	var items []repository.LowStockItem
	for rows.Next() {
		var item repository.LowStockItem
		if err := rows.Scan(&item.ProductID, &item.SKU, &item.ProductName,
			&item.CurrentStock, &item.MinStock); err != nil {
			return nil, fmt.Errorf("scan stock bajo mínimo: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
