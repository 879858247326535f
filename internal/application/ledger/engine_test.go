package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abastia/kardex-api/internal/application/ledger"
	"github.com/abastia/kardex-api/internal/domain"
	"github.com/abastia/kardex-api/internal/domain/entity"
	"github.com/abastia/kardex-api/internal/infrastructure/memory"
	"github.com/abastia/kardex-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

func newTestEngine(t *testing.T, cfg ledger.Config) (*ledger.Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	engine := ledger.NewEngine(store, store, store, store.Products(), store.Warehouses(), logger.Nop(), cfg)
	return engine, store
}

func seedProduct(t *testing.T, store *memory.Store, allowsFraction bool) string {
	t.Helper()
	id := uuid.New().String()
	err := store.Products().Create(context.Background(), &entity.Product{
		ID:             id,
		SKU:            "SKU-" + id[:8],
		Name:           "producto de prueba",
		UnitMeasure:    "un",
		AllowsFraction: allowsFraction,
		Active:         true,
	})
	require.NoError(t, err)
	return id
}

func seedWarehouse(t *testing.T, store *memory.Store, allowNegative bool) string {
	t.Helper()
	id := uuid.New().String()
	err := store.Warehouses().Create(context.Background(), &entity.Warehouse{
		ID:                 id,
		Name:               "bodega-" + id[:8],
		Active:             true,
		AllowNegativeStock: allowNegative,
	})
	require.NoError(t, err)
	return id
}

func qty(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func register(t *testing.T, e *ledger.Engine, direction, productID, warehouseID, quantity string) *entity.Movement {
	t.Helper()
	mov, err := e.RegisterMovement(context.Background(), ledger.MovementInput{
		Direction:   direction,
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    qty(quantity),
	})
	require.NoError(t, err)
	require.NotNil(t, mov)
	return mov
}

func currentQuantity(t *testing.T, store *memory.Store, productID, warehouseID string) decimal.Decimal {
	t.Helper()
	balance, err := store.Get(context.Background(), productID, warehouseID)
	require.NoError(t, err)
	return balance.Quantity
}

// ──────────────────────────────────────────────────────────────────────────────
// Escenarios básicos
// ──────────────────────────────────────────────────────────────────────────────

// Entrada de 10, salida de 4, intento de salida de 100: la tercera se rechaza sin
// escribir nada y el saldo queda en 6.
func TestRegisterMovement_EscenarioEntradaSalida(t *testing.T) {
	engine, store := newTestEngine(t, ledger.Config{})
	productID := seedProduct(t, store, true)
	warehouseID := seedWarehouse(t, store, false)

	in := register(t, engine, entity.DirectionIN, productID, warehouseID, "10")
	assert.Equal(t, int64(1), in.ID)
	assert.True(t, currentQuantity(t, store, productID, warehouseID).Equal(qty("10")))

	out := register(t, engine, entity.DirectionOUT, productID, warehouseID, "4")
	assert.Equal(t, int64(2), out.ID)
	assert.True(t, currentQuantity(t, store, productID, warehouseID).Equal(qty("6")))

	_, err := engine.RegisterMovement(context.Background(), ledger.MovementInput{
		Direction:   entity.DirectionOUT,
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    qty("100"),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.True(t, currentQuantity(t, store, productID, warehouseID).Equal(qty("6")),
		"un rechazo no debe alterar el saldo")
	history, err := store.ListByPair(context.Background(), productID, warehouseID, true, 100, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2, "el movimiento rechazado no debe persistirse")
}

func TestRegisterMovement_RechazaCantidadNoPositiva(t *testing.T) {
	engine, store := newTestEngine(t, ledger.Config{})
	productID := seedProduct(t, store, true)
	warehouseID := seedWarehouse(t, store, false)

	for _, q := range []string{"0", "-3"} {
		_, err := engine.RegisterMovement(context.Background(), ledger.MovementInput{
			Direction:   entity.DirectionIN,
			ProductID:   productID,
			WarehouseID: warehouseID,
			Quantity:    qty(q),
		})
		assert.ErrorIs(t, err, domain.ErrCantidadInvalida, "cantidad %s", q)
	}
}

func TestRegisterMovement_RechazaDireccionInvalida(t *testing.T) {
	engine, store := newTestEngine(t, ledger.Config{})
	productID := seedProduct(t, store, true)
	warehouseID := seedWarehouse(t, store, false)

	_, err := engine.RegisterMovement(context.Background(), ledger.MovementInput{
		Direction:   "TRANSFER",
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    qty("1"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// Un producto que no permite fracciones rechaza cantidades decimales y nunca las
// aplica parcialmente.
func TestRegisterMovement_RechazaFraccionEnProductoNoFraccionable(t *testing.T) {
	engine, store := newTestEngine(t, ledger.Config{})
	productID := seedProduct(t, store, false)
	warehouseID := seedWarehouse(t, store, false)

	_, err := engine.RegisterMovement(context.Background(), ledger.MovementInput{
		Direction:   entity.DirectionIN,
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    qty("1.5"),
	})
	require.ErrorIs(t, err, domain.ErrFraccionNoPermitida)
	assert.True(t, currentQuantity(t, store, productID, warehouseID).IsZero())

	// Una cantidad entera sí pasa.
	register(t, engine, entity.DirectionIN, productID, warehouseID, "2")
	assert.True(t, currentQuantity(t, store, productID, warehouseID).Equal(qty("2")))
}

func TestRegisterMovement_ProductoOBodegaInexistente(t *testing.T) {
	engine, store := newTestEngine(t, ledger.Config{})
	productID := seedProduct(t, store, true)
	warehouseID := seedWarehouse(t, store, false)

	_, err := engine.RegisterMovement(context.Background(), ledger.MovementInput{
		Direction:   entity.DirectionIN,
		ProductID:   uuid.New().String(),
		WarehouseID: warehouseID,
		Quantity:    qty("1"),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = engine.RegisterMovement(context.Background(), ledger.MovementInput{
		Direction:   entity.DirectionIN,
		ProductID:   productID,
		WarehouseID: uuid.New().String(),
		Quantity:    qty("1"),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// La política de stock negativo se habilita por bodega: la salida puede dejar el
// saldo bajo cero sin rechazo.
func TestRegisterMovement_StockNegativoPermitidoPorBodega(t *testing.T) {
	engine, store := newTestEngine(t, ledger.Config{})
	productID := seedProduct(t, store, true)
	warehouseID := seedWarehouse(t, store, true)

	register(t, engine, entity.DirectionOUT, productID, warehouseID, "3")
	assert.True(t, currentQuantity(t, store, productID, warehouseID).Equal(qty("-3")))
}

// ──────────────────────────────────────────────────────────────────────────────
// Idempotencia
// ──────────────────────────────────────────────────────────────────────────────

// Re-emitir la misma clave devuelve el movimiento original y no duplica el efecto.
func TestRegisterMovement_IdempotenciaPorClave(t *testing.T) {
	engine, store := newTestEngine(t, ledger.Config{})
	productID := seedProduct(t, store, true)
	warehouseID := seedWarehouse(t, store, false)

	input := ledger.MovementInput{
		Direction:      entity.DirectionIN,
		ProductID:      productID,
		WarehouseID:    warehouseID,
		Quantity:       qty("7"),
		IdempotencyKey: "oc-2024-0042",
	}
	first, err := engine.RegisterMovement(context.Background(), input)
	require.NoError(t, err)
	second, err := engine.RegisterMovement(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, currentQuantity(t, store, productID, warehouseID).Equal(qty("7")),
		"la re-emisión no debe aplicar dos veces")
}

// ──────────────────────────────────────────────────────────────────────────────
// Concurrencia
// ──────────────────────────────────────────────────────────────────────────────

// Dos salidas concurrentes de 6 contra un saldo de 10: exactamente una gana y la
// otra se rechaza por stock insuficiente, bajo cualquier intercalado.
func TestRegisterMovement_CarreraSalidasMismoPar(t *testing.T) {
	engine, store := newTestEngine(t, ledger.Config{})
	productID := seedProduct(t, store, true)
	warehouseID := seedWarehouse(t, store, false)
	register(t, engine, entity.DirectionIN, productID, warehouseID, "10")

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = engine.RegisterMovement(context.Background(), ledger.MovementInput{
				Direction:   entity.DirectionOUT,
				ProductID:   productID,
				WarehouseID: warehouseID,
				Quantity:    qty("6"),
			})
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("error inesperado: %v", err)
		}
	}
	assert.Equal(t, 1, ok, "exactamente una salida debe ganar")
	assert.Equal(t, 1, insufficient)
	assert.True(t, currentQuantity(t, store, productID, warehouseID).Equal(qty("4")))
}

// Muchos escritores concurrentes sobre pares disjuntos: todos progresan y cada
// saldo termina siendo la suma exacta de sus movimientos.
func TestRegisterMovement_ParesDisjuntosProgresanEnParalelo(t *testing.T) {
	engine, store := newTestEngine(t, ledger.Config{})
	warehouseID := seedWarehouse(t, store, false)

	const pairs = 4
	const perPair = 25
	productIDs := make([]string, pairs)
	for i := range productIDs {
		productIDs[i] = seedProduct(t, store, true)
	}

	var wg sync.WaitGroup
	for _, pid := range productIDs {
		for j := 0; j < perPair; j++ {
			wg.Add(1)
			go func(pid string) {
				defer wg.Done()
				_, err := engine.RegisterMovement(context.Background(), ledger.MovementInput{
					Direction:   entity.DirectionIN,
					ProductID:   pid,
					WarehouseID: warehouseID,
					Quantity:    qty("1"),
				})
				assert.NoError(t, err)
			}(pid)
		}
	}
	wg.Wait()

	for _, pid := range productIDs {
		assert.True(t, currentQuantity(t, store, pid, warehouseID).Equal(qty("25")))
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Rebuild, verificación y fallos de almacenamiento
// ──────────────────────────────────────────────────────────────────────────────

// La reconstrucción por replay siempre coincide con el saldo mantenido
// incrementalmente cuando el almacén es consistente.
func TestRebuild_EquivaleAlSaldoIncremental(t *testing.T) {
	engine, store := newTestEngine(t, ledger.Config{})
	productID := seedProduct(t, store, true)
	warehouseID := seedWarehouse(t, store, false)

	for _, step := range []struct{ dir, q string }{
		{entity.DirectionIN, "12.5"},
		{entity.DirectionOUT, "2.25"},
		{entity.DirectionIN, "0.75"},
		{entity.DirectionOUT, "1"},
	} {
		register(t, engine, step.dir, productID, warehouseID, step.q)
	}
	incremental, err := store.Get(context.Background(), productID, warehouseID)
	require.NoError(t, err)

	rebuilt, err := engine.Rebuild(context.Background(), productID, warehouseID)
	require.NoError(t, err)

	assert.True(t, rebuilt.Quantity.Equal(incremental.Quantity))
	assert.Equal(t, incremental.LastMovementID, rebuilt.LastMovementID)
	assert.Greater(t, rebuilt.Version, incremental.Version, "rebuild avanza la versión")
}

// Verify detecta un saldo corrupto, lo reporta como inconsistente y lo deja
// reconstruido; una segunda verificación ya es consistente.
func TestVerify_DetectaYReconstruyeSaldoCorrupto(t *testing.T) {
	engine, store := newTestEngine(t, ledger.Config{})
	productID := seedProduct(t, store, true)
	warehouseID := seedWarehouse(t, store, false)
	register(t, engine, entity.DirectionIN, productID, warehouseID, "10")

	// Corromper el índice por fuera del motor.
	balance, err := store.Get(context.Background(), productID, warehouseID)
	require.NoError(t, err)
	balance.Quantity = qty("999")
	require.NoError(t, store.Upsert(context.Background(), balance))

	rebuilt, consistent, err := engine.Verify(context.Background(), productID, warehouseID)
	require.NoError(t, err)
	assert.False(t, consistent)
	assert.True(t, rebuilt.Quantity.Equal(qty("10")))

	_, consistent, err = engine.Verify(context.Background(), productID, warehouseID)
	require.NoError(t, err)
	assert.True(t, consistent)
}

// Si la aplicación al saldo falla después de un append durable, el historial manda:
// el movimiento queda confirmado y el saldo se reconstruye antes de seguir.
func TestRegisterMovement_FalloDeAplicacionReconstruye(t *testing.T) {
	engine, store := newTestEngine(t, ledger.Config{})
	productID := seedProduct(t, store, true)
	warehouseID := seedWarehouse(t, store, false)
	register(t, engine, entity.DirectionIN, productID, warehouseID, "10")

	store.FailNextBalanceUpsert(errors.New("disco lleno"))
	mov, err := engine.RegisterMovement(context.Background(), ledger.MovementInput{
		Direction:   entity.DirectionOUT,
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    qty("4"),
	})
	require.NoError(t, err, "append ganó: el movimiento debe quedar confirmado")
	require.NotNil(t, mov)

	assert.True(t, currentQuantity(t, store, productID, warehouseID).Equal(qty("6")),
		"el saldo reconstruido debe incluir el movimiento")
}

// Ante almacenamiento caído el motor reintenta con backoff y finalmente surfacea
// ErrStorageUnavailable; al recuperarse, la misma petición pasa.
func TestRegisterMovement_ReintentaYSurfaceaFalloDeAlmacenamiento(t *testing.T) {
	engine, store := newTestEngine(t, ledger.Config{
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	})
	productID := seedProduct(t, store, true)
	warehouseID := seedWarehouse(t, store, false)

	store.FailAppends(errors.New("conexión rechazada"))
	_, err := engine.RegisterMovement(context.Background(), ledger.MovementInput{
		Direction:   entity.DirectionIN,
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    qty("5"),
	})
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.True(t, currentQuantity(t, store, productID, warehouseID).IsZero())

	store.FailAppends(nil)
	register(t, engine, entity.DirectionIN, productID, warehouseID, "5")
	assert.True(t, currentQuantity(t, store, productID, warehouseID).Equal(qty("5")))
}

// La suma de entradas menos salidas siempre reproduce el saldo, cualquiera sea la
// secuencia aceptada.
func TestReplay_SumaEntradasMenosSalidas(t *testing.T) {
	engine, store := newTestEngine(t, ledger.Config{})
	productID := seedProduct(t, store, true)
	warehouseID := seedWarehouse(t, store, false)

	register(t, engine, entity.DirectionIN, productID, warehouseID, "100")
	register(t, engine, entity.DirectionOUT, productID, warehouseID, "40")
	register(t, engine, entity.DirectionIN, productID, warehouseID, "15.5")
	register(t, engine, entity.DirectionOUT, productID, warehouseID, "0.5")

	movs, err := store.ListByPair(context.Background(), productID, warehouseID, true, 100, 0)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, m := range movs {
		sum = sum.Add(m.Delta())
	}
	assert.True(t, sum.Equal(currentQuantity(t, store, productID, warehouseID)))
	assert.True(t, sum.Equal(qty("75")))
}
