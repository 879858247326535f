package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/abastia/kardex-api/internal/domain/entity"
	"github.com/abastia/kardex-api/internal/domain/repository"
)

// RegisterMovementRequest body para POST /api/movimientos.
// En /api/mov-entrada y /api/mov-salida el campo direction se ignora (lo fija la ruta).
type RegisterMovementRequest struct {
	Direction      string          `json:"direction,omitempty"`
	ProductID      string          `json:"product_id"`
	WarehouseID    string          `json:"warehouse_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	Reference      string          `json:"reference,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// MovementResponse movimiento confirmado.
type MovementResponse struct {
	ID          int64           `json:"id"`
	Direction   string          `json:"direction"`
	ProductID   string          `json:"product_id"`
	WarehouseID string          `json:"warehouse_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Reference   string          `json:"reference,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ToMovementResponse convierte la entidad a su representación HTTP.
func ToMovementResponse(m *entity.Movement) *MovementResponse {
	if m == nil {
		return nil
	}
	return &MovementResponse{
		ID:          m.ID,
		Direction:   m.Direction,
		ProductID:   m.ProductID,
		WarehouseID: m.WarehouseID,
		Quantity:    m.Quantity,
		Reference:   m.Reference,
		Notes:       m.Notes,
		CreatedAt:   m.CreatedAt,
	}
}

// MovementListResponse historial paginado.
type MovementListResponse struct {
	Items []MovementResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// BalanceResponse saldo actual de un par (producto, bodega).
type BalanceResponse struct {
	ProductID      string          `json:"product_id"`
	WarehouseID    string          `json:"warehouse_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	LastMovementID int64           `json:"last_movement_id"`
	Version        int64           `json:"version"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ToBalanceResponse convierte la entidad a su representación HTTP.
func ToBalanceResponse(b *entity.Balance) *BalanceResponse {
	if b == nil {
		return nil
	}
	return &BalanceResponse{
		ProductID:      b.ProductID,
		WarehouseID:    b.WarehouseID,
		Quantity:       b.Quantity,
		LastMovementID: b.LastMovementID,
		Version:        b.Version,
		UpdatedAt:      b.UpdatedAt,
	}
}

// BalanceListResponse saldos de una bodega.
type BalanceListResponse struct {
	Items []BalanceResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}

// VerifyRequest body para POST /api/stock/verificar.
type VerifyRequest struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id"`
}

// VerifyResponse resultado de la verificación de consistencia de un par.
type VerifyResponse struct {
	Consistent bool             `json:"consistent"`
	Balance    *BalanceResponse `json:"balance"`
}

// LowStockItemDTO producto bajo su stock mínimo en una bodega.
type LowStockItemDTO struct {
	ProductID    string          `json:"product_id"`
	SKU          string          `json:"sku"`
	ProductName  string          `json:"product_name"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	MinStock     decimal.Decimal `json:"min_stock"`
}

// ToLowStockItemDTO convierte el resultado crudo del repositorio.
func ToLowStockItemDTO(item repository.LowStockItem) LowStockItemDTO {
	return LowStockItemDTO{
		ProductID:    item.ProductID,
		SKU:          item.SKU,
		ProductName:  item.ProductName,
		CurrentStock: item.CurrentStock,
		MinStock:     item.MinStock,
	}
}
