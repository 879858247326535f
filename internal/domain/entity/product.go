package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto o SKU del catálogo. El libro de movimientos solo lo
// consulta: identidad, si permite fracciones y su unidad de medida.
type Product struct {
	ID              string
	SKU             string // código único
	Name            string
	Description     string
	UnitMeasure     string          // ej: kg, un, L
	AllowsFraction  bool            // permite decimales en cantidades
	MinStock        decimal.Decimal // umbral para el listado de stock bajo mínimo
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
