package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direcciones de movimiento de inventario.
const (
	DirectionIN  = "IN"  // entrada
	DirectionOUT = "OUT" // salida
)

// Movement representa un movimiento de inventario (entrada o salida) ya confirmado.
// Es inmutable: una vez escrito nunca se actualiza ni se borra; las correcciones se
// hacen registrando un movimiento compensatorio en la dirección opuesta.
type Movement struct {
	ID             int64 // asignado por el almacén al confirmar, monotónico
	Direction      string
	ProductID      string
	WarehouseID    string
	Quantity       decimal.Decimal // siempre positiva; la dirección indica el signo
	Reference      string          // OC, factura, nota de ajuste, etc. (opaco)
	Notes          string
	IdempotencyKey string // opcional, provisto por el cliente para deduplicar
	CreatedAt      time.Time
}

// Delta devuelve el efecto del movimiento sobre el saldo: +Quantity para IN, -Quantity para OUT.
func (m *Movement) Delta() decimal.Decimal {
	if m.Direction == DirectionOUT {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// ValidDirection indica si la dirección es una de las conocidas.
func ValidDirection(d string) bool {
	return d == DirectionIN || d == DirectionOUT
}
