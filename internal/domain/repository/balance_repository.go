package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/abastia/kardex-api/internal/domain/entity"
)

// LowStockItem resultado crudo para un producto bajo su stock mínimo.
type LowStockItem struct {
	ProductID    string
	SKU          string
	ProductName  string
	CurrentStock decimal.Decimal
	MinStock     decimal.Decimal
}

// BalanceRepository define el puerto para consultar/actualizar el saldo por
// (producto, bodega). La lectura (Get) nunca bloquea sobre el historial de movimientos.
type BalanceRepository interface {
	// Get devuelve el saldo actual, o el saldo cero si el par nunca fue tocado.
	Get(ctx context.Context, productID, warehouseID string) (*entity.Balance, error)
	// GetForUpdate bloquea la fila para update (SELECT FOR UPDATE) dentro de una tx.
	GetForUpdate(ctx context.Context, productID, warehouseID string) (*entity.Balance, error)
	Upsert(ctx context.Context, balance *entity.Balance) error
	ListByWarehouse(ctx context.Context, warehouseID string, limit, offset int) ([]*entity.Balance, error)
	// ListBelowMinimum devuelve productos cuyo stock actual en la bodega está por
	// debajo de su stock mínimo, ordenados por mayor déficit primero.
	ListBelowMinimum(ctx context.Context, warehouseID string) ([]LowStockItem, error)
}
