package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance representa el stock actual de un producto en una bodega, derivado de los
// movimientos. Invariante: Quantity es igual a la suma de entradas menos salidas de
// los movimientos con ID <= LastMovementID para el par (producto, bodega).
type Balance struct {
	ProductID      string
	WarehouseID    string
	Quantity       decimal.Decimal
	LastMovementID int64 // último movimiento aplicado
	Version        int64 // crece en cada aplicación; detección de staleness en lectores
	UpdatedAt      time.Time
}

// ZeroBalance saldo por defecto para un par nunca tocado. Un saldo en cero es un
// estado válido, no una ausencia.
func ZeroBalance(productID, warehouseID string) *Balance {
	return &Balance{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    decimal.Zero,
	}
}
