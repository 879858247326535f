package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/abastia/kardex-api/internal/application/dto"
	"github.com/abastia/kardex-api/internal/application/ledger"
	"github.com/abastia/kardex-api/internal/domain/entity"
)

// MovementHandler maneja el registro de movimientos de inventario.
type MovementHandler struct {
	engine *ledger.Engine
}

// NewMovementHandler construye el handler.
func NewMovementHandler(engine *ledger.Engine) *MovementHandler {
	return &MovementHandler{engine: engine}
}

// Register registra un movimiento con la dirección indicada en el body.
// POST /api/movimientos
func (h *MovementHandler) Register(c *fiber.Ctx) error {
	return h.register(c, "")
}

// RegisterEntrada registra una entrada (dirección fija IN).
// POST /api/mov-entrada
func (h *MovementHandler) RegisterEntrada(c *fiber.Ctx) error {
	return h.register(c, entity.DirectionIN)
}

// RegisterSalida registra una salida (dirección fija OUT).
// POST /api/mov-salida
func (h *MovementHandler) RegisterSalida(c *fiber.Ctx) error {
	return h.register(c, entity.DirectionOUT)
}

func (h *MovementHandler) register(c *fiber.Ctx, direction string) error {
	var in dto.RegisterMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if direction != "" {
		in.Direction = direction
	}
	mov, err := h.engine.RegisterMovement(c.Context(), ledger.MovementInput{
		Direction:      in.Direction,
		ProductID:      in.ProductID,
		WarehouseID:    in.WarehouseID,
		Quantity:       in.Quantity,
		Reference:      in.Reference,
		Notes:          in.Notes,
		IdempotencyKey: in.IdempotencyKey,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToMovementResponse(mov))
}
