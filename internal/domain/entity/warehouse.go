package entity

import "time"

// Warehouse representa una bodega donde se almacena inventario.
type Warehouse struct {
	ID                 string
	Name               string
	Address            string
	Active             bool
	AllowNegativeStock bool // permite saldos negativos (ej. backorders) en esta bodega
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
