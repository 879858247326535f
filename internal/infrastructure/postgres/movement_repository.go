package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/abastia/kardex-api/internal/domain"
	"github.com/abastia/kardex-api/internal/domain/entity"
	"github.com/abastia/kardex-api/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo implementación append-only del historial sobre PostgreSQL.
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

// Append persiste un movimiento. El ID lo asigna la secuencia (BIGSERIAL) y el
// timestamp se fuerza no-decreciente por par, aun si el reloj del servidor retrocede.
func (r *MovementRepo) Append(ctx context.Context, m *entity.Movement) error {
	query := `
		INSERT INTO movimientos (direccion, product_id, warehouse_id, cantidad, referencia, observacion, clave_idempotencia, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7,
			GREATEST(now(), COALESCE(
				(SELECT max(created_at) FROM movimientos WHERE product_id = $2 AND warehouse_id = $3),
				now())))
		RETURNING id, created_at`
	idempotencyKey := (*string)(nil)
	if m.IdempotencyKey != "" {
		idempotencyKey = &m.IdempotencyKey
	}
	err := r.q.QueryRow(ctx, query,
		m.Direction, m.ProductID, m.WarehouseID, m.Quantity,
		m.Reference, m.Notes, idempotencyKey,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("append movimiento: %w", err)
	}
	return nil
}

// GetByID obtiene un movimiento por ID.
func (r *MovementRepo) GetByID(ctx context.Context, id int64) (*entity.Movement, error) {
	query := `
		SELECT id, direccion, product_id, warehouse_id, cantidad, referencia, observacion, clave_idempotencia, created_at
		FROM movimientos WHERE id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey obtiene el movimiento confirmado con esa clave, o nil.
func (r *MovementRepo) GetByIdempotencyKey(ctx context.Context, key string) (*entity.Movement, error) {
	query := `
		SELECT id, direccion, product_id, warehouse_id, cantidad, referencia, observacion, clave_idempotencia, created_at
		FROM movimientos WHERE clave_idempotencia = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, key))
}

// ListByPair lista movimientos de un par ordenados por ID.
func (r *MovementRepo) ListByPair(ctx context.Context, productID, warehouseID string, asc bool, limit, offset int) ([]*entity.Movement, error) {
	order := "DESC"
	if asc {
		order = "ASC"
	}
	query := fmt.Sprintf(`
		SELECT id, direccion, product_id, warehouse_id, cantidad, referencia, observacion, clave_idempotencia, created_at
		FROM movimientos WHERE product_id = $1 AND warehouse_id = $2
		ORDER BY id %s LIMIT $3 OFFSET $4`, order)
	rows, err := r.q.Query(ctx, query, productID, warehouseID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list movimientos: %w", err)
	}
	defer rows.Close()
	var list []*entity.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (r *MovementRepo) scanOne(row pgx.Row) (*entity.Movement, error) {
	m, err := scanMovement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func scanMovement(row pgx.Row) (*entity.Movement, error) {
	var m entity.Movement
	var idempotencyKey *string
	if err := row.Scan(&m.ID, &m.Direction, &m.ProductID, &m.WarehouseID,
		&m.Quantity, &m.Reference, &m.Notes, &idempotencyKey, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan movimiento: %w", err)
	}
	if idempotencyKey != nil {
		m.IdempotencyKey = *idempotencyKey
	}
	return &m, nil
}
