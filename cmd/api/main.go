package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/abastia/kardex-api/internal/application/ledger"
	"github.com/abastia/kardex-api/internal/application/query"
	"github.com/abastia/kardex-api/internal/application/usecase"
	"github.com/abastia/kardex-api/internal/infrastructure/memory"
	"github.com/abastia/kardex-api/internal/infrastructure/postgres"
	httpRouter "github.com/abastia/kardex-api/internal/interfaces/http"
	"github.com/abastia/kardex-api/pkg/config"
	"github.com/abastia/kardex-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Store.Driver).
		Msg("iniciando aplicación")

	ctx := context.Background()
	ledgerCfg := ledger.Config{
		AllowNegativeStock: cfg.Ledger.AllowNegativeStock,
		MaxRetries:         cfg.Ledger.MaxRetries,
		RetryBackoff:       cfg.Ledger.RetryBackoff,
	}

	var (
		engine      *ledger.Engine
		queries     *query.Service
		productUC   *usecase.ProductUseCase
		warehouseUC *usecase.WarehouseUseCase
	)
	switch cfg.Store.Driver {
	case "memory":
		// Driver en memoria: desarrollo y demos, sin persistencia entre reinicios.
		store := memory.NewStore()
		engine = ledger.NewEngine(store, store, store, store.Products(), store.Warehouses(), log, ledgerCfg)
		queries = query.NewService(store, store)
		productUC = usecase.NewProductUseCase(store.Products())
		warehouseUC = usecase.NewWarehouseUseCase(store.Warehouses())
	default:
		pool, perr := postgres.NewPool(ctx, cfg.DB)
		if perr != nil {
			log.Fatal().Err(perr).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()

		movRepo := postgres.NewMovementRepository(pool)
		balanceRepo := postgres.NewBalanceRepository(pool)
		productRepo := postgres.NewProductRepository(pool)
		warehouseRepo := postgres.NewWarehouseRepository(pool)
		txRunner := postgres.NewTxRunner(pool)

		engine = ledger.NewEngine(txRunner, movRepo, balanceRepo, productRepo, warehouseRepo, log, ledgerCfg)
		queries = query.NewService(movRepo, balanceRepo)
		productUC = usecase.NewProductUseCase(productRepo)
		warehouseUC = usecase.NewWarehouseUseCase(warehouseRepo)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Engine:      engine,
		Queries:     queries,
		ProductUC:   productUC,
		WarehouseUC: warehouseUC,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
