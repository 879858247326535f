package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateProductRequest body para POST /api/productos.
type CreateProductRequest struct {
	SKU            string          `json:"sku"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	UnitMeasure    string          `json:"unit_measure"`
	AllowsFraction bool            `json:"allows_fraction"`
	MinStock       decimal.Decimal `json:"min_stock"`
}

// ProductResponse producto del catálogo.
type ProductResponse struct {
	ID             string          `json:"id"`
	SKU            string          `json:"sku"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	UnitMeasure    string          `json:"unit_measure"`
	AllowsFraction bool            `json:"allows_fraction"`
	MinStock       decimal.Decimal `json:"min_stock"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ProductListResponse listado paginado de productos.
type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}

// CreateWarehouseRequest body para POST /api/bodegas.
type CreateWarehouseRequest struct {
	Name               string `json:"name"`
	Address            string `json:"address,omitempty"`
	AllowNegativeStock bool   `json:"allow_negative_stock"`
}

// WarehouseResponse bodega.
type WarehouseResponse struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Address            string    `json:"address,omitempty"`
	Active             bool      `json:"active"`
	AllowNegativeStock bool      `json:"allow_negative_stock"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// WarehouseListResponse listado paginado de bodegas.
type WarehouseListResponse struct {
	Items []WarehouseResponse `json:"items"`
	Page  PageResponse        `json:"page"`
}
