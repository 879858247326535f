package repository

import (
	"context"

	"github.com/abastia/kardex-api/internal/domain/entity"
)

// MovementRepository define el puerto de persistencia para el historial de movimientos.
// El almacén es append-only: Append es la única escritura y debe ser atómica (el
// registro queda completamente durable o no es visible).
type MovementRepository interface {
	// Append asigna ID (monotónico) y CreatedAt, y persiste el movimiento.
	Append(ctx context.Context, movement *entity.Movement) error
	GetByID(ctx context.Context, id int64) (*entity.Movement, error)
	// GetByIdempotencyKey devuelve el movimiento ya confirmado con esa clave, o nil.
	GetByIdempotencyKey(ctx context.Context, key string) (*entity.Movement, error)
	// ListByPair lista movimientos de un par (producto, bodega) ordenados por ID.
	// asc=true para replay (ascendente); asc=false para historial (más reciente primero).
	ListByPair(ctx context.Context, productID, warehouseID string, asc bool, limit, offset int) ([]*entity.Movement, error)
}
