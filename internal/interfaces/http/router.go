package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/abastia/kardex-api/internal/application/ledger"
	"github.com/abastia/kardex-api/internal/application/query"
	"github.com/abastia/kardex-api/internal/application/usecase"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Engine      *ledger.Engine
	Queries     *query.Service
	ProductUC   *usecase.ProductUseCase
	WarehouseUC *usecase.WarehouseUseCase
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Catálogo liviano: productos y bodegas
	products := api.Group("/productos")
	productHandler := NewProductHandler(deps.ProductUC)
	products.Post("/", productHandler.Create)
	products.Get("/", productHandler.List)
	products.Get("/:id", productHandler.GetByID)

	warehouses := api.Group("/bodegas")
	warehouseHandler := NewWarehouseHandler(deps.WarehouseUC)
	warehouses.Post("/", warehouseHandler.Create)
	warehouses.Get("/", warehouseHandler.List)
	warehouses.Get("/:id", warehouseHandler.GetByID)

	// Movimientos (escritura, solo vía el motor)
	movementHandler := NewMovementHandler(deps.Engine)
	api.Post("/movimientos", movementHandler.Register)
	api.Post("/mov-entrada", movementHandler.RegisterEntrada)
	api.Post("/mov-salida", movementHandler.RegisterSalida)

	// Consultas de solo lectura + verificación
	stockHandler := NewStockHandler(deps.Queries, deps.Engine)
	api.Get("/movimientos", stockHandler.History)
	api.Get("/stock", stockHandler.CurrentStock)
	api.Get("/stock/minimos", stockHandler.LowStock)
	api.Get("/stock/bodega/:id", stockHandler.StockByWarehouse)
	api.Post("/stock/verificar", stockHandler.Verify)
}
