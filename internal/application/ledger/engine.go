package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/abastia/kardex-api/internal/domain"
	"github.com/abastia/kardex-api/internal/domain/entity"
	"github.com/abastia/kardex-api/internal/domain/repository"
	"github.com/abastia/kardex-api/pkg/logger"
)

// Config política y parámetros del motor.
type Config struct {
	AllowNegativeStock bool          // política global; puede habilitarse por bodega
	MaxRetries         int           // reintentos ante fallos de almacenamiento
	RetryBackoff       time.Duration // backoff base, crece exponencialmente
}

const (
	defaultMaxRetries   = 3
	defaultRetryBackoff = 50 * time.Millisecond
	rebuildPageSize     = 500
)

// Engine es el único escritor del historial de movimientos y del índice de saldos.
// Valida, serializa por (producto, bodega) y confirma movimientos; desde la
// perspectiva del caller el commit es atómico: o el movimiento queda confirmado y
// reflejado en el saldo, o no se escribe nada.
type Engine struct {
	tx         TxRunner
	movements  repository.MovementRepository // lecturas fuera de tx (rebuild, verificación)
	balances   repository.BalanceRepository
	products   repository.ProductRepository
	warehouses repository.WarehouseRepository
	locks      *pairLocks
	log        *logger.Logger
	cfg        Config

	mu    sync.Mutex
	dirty map[pairKey]bool // pares con saldo posiblemente divergente del historial
}

// NewEngine construye el motor.
func NewEngine(
	tx TxRunner,
	movements repository.MovementRepository,
	balances repository.BalanceRepository,
	products repository.ProductRepository,
	warehouses repository.WarehouseRepository,
	log *logger.Logger,
	cfg Config,
) *Engine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	return &Engine{
		tx:         tx,
		movements:  movements,
		balances:   balances,
		products:   products,
		warehouses: warehouses,
		locks:      newPairLocks(),
		log:        log,
		cfg:        cfg,
		dirty:      make(map[pairKey]bool),
	}
}

// MovementInput petición de movimiento, aún sin confirmar.
type MovementInput struct {
	Direction      string
	ProductID      string
	WarehouseID    string
	Quantity       decimal.Decimal
	Reference      string
	Notes          string
	IdempotencyKey string
}

// RegisterMovement valida y confirma un movimiento. Rechazos de validación y de
// stock insuficiente son sincrónicos y no escriben nada. Una petición cancelada
// antes de entrar a la sección crítica de su par no deja efectos secundarios.
func (e *Engine) RegisterMovement(ctx context.Context, input MovementInput) (*entity.Movement, error) {
	if !entity.ValidDirection(input.Direction) {
		return nil, domain.ErrInvalidInput
	}
	if !input.Quantity.IsPositive() {
		return nil, domain.ErrCantidadInvalida
	}

	product, err := e.products.GetByID(ctx, input.ProductID)
	if err != nil {
		return nil, fmt.Errorf("consultar producto: %w", err)
	}
	if product == nil || !product.Active {
		return nil, domain.ErrNotFound
	}
	if !product.AllowsFraction && !input.Quantity.Equal(input.Quantity.Truncate(0)) {
		return nil, domain.ErrFraccionNoPermitida
	}

	warehouse, err := e.warehouses.GetByID(ctx, input.WarehouseID)
	if err != nil {
		return nil, fmt.Errorf("consultar bodega: %w", err)
	}
	if warehouse == nil || !warehouse.Active {
		return nil, domain.ErrNotFound
	}
	negAllowed := e.cfg.AllowNegativeStock || warehouse.AllowNegativeStock

	// Deduplicación por clave de cliente: una re-emisión devuelve el original.
	if input.IdempotencyKey != "" {
		prev, err := e.movements.GetByIdempotencyKey(ctx, input.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("consultar clave de idempotencia: %w", err)
		}
		if prev != nil {
			return prev, nil
		}
	}

	release, err := e.locks.Acquire(ctx, input.ProductID, input.WarehouseID)
	if err != nil {
		return nil, err
	}
	defer release()

	key := pairKey{ProductID: input.ProductID, WarehouseID: input.WarehouseID}
	if e.isDirty(key) {
		// No servir el par hasta restaurar la consistencia saldo/historial.
		if err := e.rebuildLocked(ctx, input.ProductID, input.WarehouseID); err != nil {
			return nil, err
		}
	}

	return e.commitWithRetry(ctx, input, negAllowed)
}

// applyError señala que la aplicación al saldo falló después del append del
// movimiento. Con un runner atómico la tx entera se revierte; con uno no atómico el
// append puede haber quedado durable y el historial es quien decide.
type applyError struct {
	movementID int64
	err        error
}

func (e *applyError) Error() string { return "aplicar saldo: " + e.err.Error() }
func (e *applyError) Unwrap() error { return e.err }

// commitWithRetry ejecuta la transacción append+apply, reintentando con backoff
// exponencial solo ante fallos de almacenamiento. Debe llamarse con el lock del par.
func (e *Engine) commitWithRetry(ctx context.Context, input MovementInput, negAllowed bool) (*entity.Movement, error) {
	var lastErr error
	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := e.cfg.RetryBackoff << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		mov, err := e.commit(ctx, input, negAllowed)
		if err == nil {
			return mov, nil
		}
		if isBusinessErr(err) {
			if errors.Is(err, domain.ErrDuplicate) && input.IdempotencyKey != "" {
				// Carrera de idempotencia: otro commit ganó con la misma clave.
				if prev, ferr := e.movements.GetByIdempotencyKey(ctx, input.IdempotencyKey); ferr == nil && prev != nil {
					return prev, nil
				}
			}
			return nil, err
		}
		var aerr *applyError
		if errors.As(err, &aerr) {
			return e.recoverApply(ctx, input, aerr)
		}
		lastErr = err
		e.log.Warn().
			Str("product_id", input.ProductID).
			Str("warehouse_id", input.WarehouseID).
			Int("attempt", attempt+1).
			Err(err).
			Msg("fallo de almacenamiento al confirmar movimiento, reintentando")
	}
	return nil, fmt.Errorf("confirmar movimiento %s %s/%s: %w: %w",
		input.Direction, input.ProductID, input.WarehouseID, domain.ErrStorageUnavailable, lastErr)
}

// commit corre append+apply como una transacción lógica.
func (e *Engine) commit(ctx context.Context, input MovementInput, negAllowed bool) (*entity.Movement, error) {
	var committed *entity.Movement
	err := e.tx.Run(ctx, func(movs repository.MovementRepository, balances repository.BalanceRepository) error {
		balance, err := balances.GetForUpdate(ctx, input.ProductID, input.WarehouseID)
		if err != nil {
			return err
		}
		if input.Direction == entity.DirectionOUT && !negAllowed &&
			balance.Quantity.LessThan(input.Quantity) {
			return domain.ErrInsufficientStock
		}

		mov := &entity.Movement{
			Direction:      input.Direction,
			ProductID:      input.ProductID,
			WarehouseID:    input.WarehouseID,
			Quantity:       input.Quantity,
			Reference:      input.Reference,
			Notes:          input.Notes,
			IdempotencyKey: input.IdempotencyKey,
		}
		if err := movs.Append(ctx, mov); err != nil {
			return err
		}

		balance.Quantity = balance.Quantity.Add(mov.Delta())
		balance.LastMovementID = mov.ID
		balance.Version++
		balance.UpdatedAt = mov.CreatedAt
		if err := balances.Upsert(ctx, balance); err != nil {
			return &applyError{movementID: mov.ID, err: err}
		}
		committed = mov
		return nil
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// recoverApply resuelve la divergencia append-sin-apply: reconstruye el saldo desde
// el historial y decide el resultado según si el append sobrevivió a la falla.
// Debe llamarse con el lock del par.
func (e *Engine) recoverApply(ctx context.Context, input MovementInput, aerr *applyError) (*entity.Movement, error) {
	key := pairKey{ProductID: input.ProductID, WarehouseID: input.WarehouseID}
	e.markDirty(key)
	e.log.Error().
		Str("product_id", input.ProductID).
		Str("warehouse_id", input.WarehouseID).
		Int64("movement_id", aerr.movementID).
		Err(aerr.err).
		Msg("fallo al aplicar saldo tras append; reconstruyendo el par")

	if err := e.rebuildLocked(ctx, input.ProductID, input.WarehouseID); err != nil {
		return nil, err
	}
	mov, err := e.movements.GetByID(ctx, aerr.movementID)
	if err != nil {
		return nil, fmt.Errorf("verificar movimiento %d: %w", aerr.movementID, err)
	}
	if mov == nil {
		// El runner revirtió la transacción completa: no quedó nada escrito.
		return nil, fmt.Errorf("confirmar movimiento %s/%s: %w",
			input.ProductID, input.WarehouseID, domain.ErrStorageUnavailable)
	}
	// Append ganó: el movimiento está confirmado y el saldo reconstruido ya lo incluye.
	return mov, nil
}

// Rebuild recalcula el saldo de un par desde cero, reproduciendo su historial.
// Adquiere la sección crítica del par; para uso operacional y de recuperación.
func (e *Engine) Rebuild(ctx context.Context, productID, warehouseID string) (*entity.Balance, error) {
	release, err := e.locks.Acquire(ctx, productID, warehouseID)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := e.rebuildLocked(ctx, productID, warehouseID); err != nil {
		return nil, err
	}
	return e.balances.Get(ctx, productID, warehouseID)
}

// rebuildLocked reconstruye el saldo del par. Debe llamarse con el lock del par.
func (e *Engine) rebuildLocked(ctx context.Context, productID, warehouseID string) error {
	current, err := e.balances.Get(ctx, productID, warehouseID)
	if err != nil {
		return fmt.Errorf("leer saldo para rebuild: %w", err)
	}
	sum, lastID, err := e.replayPair(ctx, productID, warehouseID)
	if err != nil {
		return fmt.Errorf("reproducir historial %s/%s: %w", productID, warehouseID, err)
	}

	rebuilt := &entity.Balance{
		ProductID:      productID,
		WarehouseID:    warehouseID,
		Quantity:       sum,
		LastMovementID: lastID,
		Version:        current.Version + 1,
		UpdatedAt:      time.Now(),
	}
	if err := e.balances.Upsert(ctx, rebuilt); err != nil {
		return fmt.Errorf("escribir saldo reconstruido %s/%s: %w", productID, warehouseID, err)
	}
	e.clearDirty(pairKey{ProductID: productID, WarehouseID: warehouseID})
	e.log.Info().
		Str("product_id", productID).
		Str("warehouse_id", warehouseID).
		Str("quantity", sum.String()).
		Int64("last_movement_id", lastID).
		Msg("saldo reconstruido desde el historial")
	return nil
}

// Verify compara el saldo incremental contra una recomputación por replay. Si
// difieren registra el evento de integridad, reconstruye y devuelve consistent=false
// junto con el saldo ya corregido.
func (e *Engine) Verify(ctx context.Context, productID, warehouseID string) (*entity.Balance, bool, error) {
	release, err := e.locks.Acquire(ctx, productID, warehouseID)
	if err != nil {
		return nil, false, err
	}
	defer release()

	stored, err := e.balances.Get(ctx, productID, warehouseID)
	if err != nil {
		return nil, false, fmt.Errorf("leer saldo: %w", err)
	}
	sum, lastID, err := e.replayPair(ctx, productID, warehouseID)
	if err != nil {
		return nil, false, fmt.Errorf("reproducir historial %s/%s: %w", productID, warehouseID, err)
	}
	if stored.Quantity.Equal(sum) && stored.LastMovementID == lastID {
		return stored, true, nil
	}

	e.log.Error().
		Str("product_id", productID).
		Str("warehouse_id", warehouseID).
		Str("stored", stored.Quantity.String()).
		Str("replayed", sum.String()).
		Int64("stored_last_id", stored.LastMovementID).
		Int64("replayed_last_id", lastID).
		Msg("inconsistencia detectada entre saldo e historial")
	e.markDirty(pairKey{ProductID: productID, WarehouseID: warehouseID})
	if err := e.rebuildLocked(ctx, productID, warehouseID); err != nil {
		return nil, false, err
	}
	rebuilt, err := e.balances.Get(ctx, productID, warehouseID)
	if err != nil {
		return nil, false, fmt.Errorf("leer saldo reconstruido: %w", err)
	}
	return rebuilt, false, nil
}

// replayPair suma el historial completo del par en orden de ID ascendente.
func (e *Engine) replayPair(ctx context.Context, productID, warehouseID string) (decimal.Decimal, int64, error) {
	sum := decimal.Zero
	var lastID int64
	offset := 0
	for {
		movs, err := e.movements.ListByPair(ctx, productID, warehouseID, true, rebuildPageSize, offset)
		if err != nil {
			return decimal.Zero, 0, err
		}
		for _, m := range movs {
			sum = sum.Add(m.Delta())
			lastID = m.ID
		}
		if len(movs) < rebuildPageSize {
			return sum, lastID, nil
		}
		offset += rebuildPageSize
	}
}

func (e *Engine) isDirty(key pairKey) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty[key]
}

func (e *Engine) markDirty(key pairKey) {
	e.mu.Lock()
	e.dirty[key] = true
	e.mu.Unlock()
}

func (e *Engine) clearDirty(key pairKey) {
	e.mu.Lock()
	delete(e.dirty, key)
	e.mu.Unlock()
}

// isBusinessErr distingue rechazos esperados (se devuelven tal cual, sin reintento)
// de fallos de infraestructura.
func isBusinessErr(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrCantidadInvalida) ||
		errors.Is(err, domain.ErrFraccionNoPermitida) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInsufficientStock) ||
		errors.Is(err, domain.ErrDuplicate)
}
