package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/abastia/kardex-api/internal/application/dto"
	"github.com/abastia/kardex-api/internal/application/ledger"
	"github.com/abastia/kardex-api/internal/application/query"
)

// StockHandler expone las consultas de solo lectura sobre saldos e historial, y la
// verificación operacional de consistencia.
type StockHandler struct {
	queries *query.Service
	engine  *ledger.Engine
}

// NewStockHandler construye el handler.
func NewStockHandler(queries *query.Service, engine *ledger.Engine) *StockHandler {
	return &StockHandler{queries: queries, engine: engine}
}

// CurrentStock devuelve el saldo actual de un par (producto, bodega).
// GET /api/stock?product_id=&warehouse_id=
func (h *StockHandler) CurrentStock(c *fiber.Ctx) error {
	productID := c.Query("product_id")
	warehouseID := c.Query("warehouse_id")
	if productID == "" || warehouseID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "product_id y warehouse_id son requeridos"})
	}
	balance, err := h.queries.CurrentStock(c.Context(), productID, warehouseID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(dto.ToBalanceResponse(balance))
}

// StockByWarehouse lista los saldos de una bodega.
// GET /api/stock/bodega/:id
func (h *StockHandler) StockByWarehouse(c *fiber.Ctx) error {
	warehouseID := c.Params("id")
	limit, offset := pageParams(c)
	list, err := h.queries.StockByWarehouse(c.Context(), warehouseID, limit, offset)
	if err != nil {
		return errorJSON(c, err)
	}
	items := make([]dto.BalanceResponse, 0, len(list))
	for _, b := range list {
		items = append(items, *dto.ToBalanceResponse(b))
	}
	return c.JSON(dto.BalanceListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: limit, Offset: offset},
	})
}

// History devuelve el historial de movimientos de un par, más reciente primero.
// GET /api/movimientos?product_id=&warehouse_id=
func (h *StockHandler) History(c *fiber.Ctx) error {
	productID := c.Query("product_id")
	warehouseID := c.Query("warehouse_id")
	if productID == "" || warehouseID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "product_id y warehouse_id son requeridos"})
	}
	limit, offset := pageParams(c)
	movs, err := h.queries.History(c.Context(), productID, warehouseID, limit, offset)
	if err != nil {
		return errorJSON(c, err)
	}
	items := make([]dto.MovementResponse, 0, len(movs))
	for _, m := range movs {
		items = append(items, *dto.ToMovementResponse(m))
	}
	return c.JSON(dto.MovementListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: limit, Offset: offset},
	})
}

// LowStock lista productos bajo su stock mínimo en una bodega.
// GET /api/stock/minimos?warehouse_id=
func (h *StockHandler) LowStock(c *fiber.Ctx) error {
	warehouseID := c.Query("warehouse_id")
	if warehouseID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "warehouse_id es requerido"})
	}
	items, err := h.queries.LowStock(c.Context(), warehouseID)
	if err != nil {
		return errorJSON(c, err)
	}
	out := make([]dto.LowStockItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, dto.ToLowStockItemDTO(item))
	}
	return c.JSON(fiber.Map{"total": len(out), "items": out})
}

// Verify compara el saldo incremental contra el replay del historial y reconstruye
// si difieren.
// POST /api/stock/verificar
func (h *StockHandler) Verify(c *fiber.Ctx) error {
	var in dto.VerifyRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.ProductID == "" || in.WarehouseID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "product_id y warehouse_id son requeridos"})
	}
	balance, consistent, err := h.engine.Verify(c.Context(), in.ProductID, in.WarehouseID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(dto.VerifyResponse{
		Consistent: consistent,
		Balance:    dto.ToBalanceResponse(balance),
	})
}
