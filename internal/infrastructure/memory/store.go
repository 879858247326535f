// Package memory implementa los puertos del ledger en memoria, para desarrollo y
// tests. A diferencia del driver PostgreSQL su TxRunner no es atómico: el append
// queda durable aunque la aplicación del saldo falle, que es exactamente el
// escenario que el motor resuelve reconstruyendo desde el historial.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/abastia/kardex-api/internal/application/ledger"
	"github.com/abastia/kardex-api/internal/domain"
	"github.com/abastia/kardex-api/internal/domain/entity"
	"github.com/abastia/kardex-api/internal/domain/repository"
)

var (
	_ repository.MovementRepository  = (*Store)(nil)
	_ repository.BalanceRepository   = (*Store)(nil)
	_ ledger.TxRunner                = (*Store)(nil)
	_ repository.ProductRepository   = (*ProductStore)(nil)
	_ repository.WarehouseRepository = (*WarehouseStore)(nil)
)

type pairKey struct {
	ProductID   string
	WarehouseID string
}

// Store almacén en memoria: historial de movimientos, índice de saldos y catálogo.
// Products() y Warehouses() exponen los repositorios de catálogo sobre los mismos datos.
type Store struct {
	mu          sync.RWMutex
	nextID      int64
	byID        map[int64]*entity.Movement
	byPair      map[pairKey][]*entity.Movement
	idempotency map[string]int64
	lastCommit  map[pairKey]time.Time
	balances    map[pairKey]entity.Balance
	products    map[string]*entity.Product
	warehouses  map[string]*entity.Warehouse

	failAppend    error // si no es nil, todos los Append fallan
	failNextApply error // si no es nil, el próximo Upsert de saldo falla (one-shot)
}

// NewStore construye el almacén vacío.
func NewStore() *Store {
	return &Store{
		byID:        make(map[int64]*entity.Movement),
		byPair:      make(map[pairKey][]*entity.Movement),
		idempotency: make(map[string]int64),
		lastCommit:  make(map[pairKey]time.Time),
		balances:    make(map[pairKey]entity.Balance),
		products:    make(map[string]*entity.Product),
		warehouses:  make(map[string]*entity.Warehouse),
	}
}

// Products devuelve el repositorio de productos sobre este almacén.
func (s *Store) Products() *ProductStore { return &ProductStore{s: s} }

// Warehouses devuelve el repositorio de bodegas sobre este almacén.
func (s *Store) Warehouses() *WarehouseStore { return &WarehouseStore{s: s} }

// ─── Hooks de fallos (solo tests) ────────────────────────────────────────────

// FailAppends hace fallar todos los Append con err; pasar nil para restaurar.
func (s *Store) FailAppends(err error) {
	s.mu.Lock()
	s.failAppend = err
	s.mu.Unlock()
}

// FailNextBalanceUpsert hace fallar el próximo Upsert de saldo con err (one-shot).
func (s *Store) FailNextBalanceUpsert(err error) {
	s.mu.Lock()
	s.failNextApply = err
	s.mu.Unlock()
}

// ─── TxRunner ────────────────────────────────────────────────────────────────

// Run ejecuta fn contra el propio almacén. No hay rollback: el motor serializa por
// par y usa el historial como verdad ante una aplicación de saldo fallida.
func (s *Store) Run(_ context.Context, fn func(
	movRepo repository.MovementRepository,
	balanceRepo repository.BalanceRepository,
) error) error {
	return fn(s, s)
}

// ─── MovementRepository ──────────────────────────────────────────────────────

// Append asigna ID monotónico y timestamp no-decreciente por par, y persiste.
func (s *Store) Append(_ context.Context, m *entity.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend != nil {
		return s.failAppend
	}
	if m.IdempotencyKey != "" {
		if _, ok := s.idempotency[m.IdempotencyKey]; ok {
			return domain.ErrDuplicate
		}
	}

	key := pairKey{ProductID: m.ProductID, WarehouseID: m.WarehouseID}
	now := time.Now()
	if last, ok := s.lastCommit[key]; ok && now.Before(last) {
		now = last
	}

	s.nextID++
	m.ID = s.nextID
	m.CreatedAt = now
	s.lastCommit[key] = now

	stored := *m
	s.byID[m.ID] = &stored
	s.byPair[key] = append(s.byPair[key], &stored)
	if m.IdempotencyKey != "" {
		s.idempotency[m.IdempotencyKey] = m.ID
	}
	return nil
}

func (s *Store) GetByID(_ context.Context, id int64) (*entity.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *Store) GetByIdempotencyKey(_ context.Context, key string) (*entity.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.idempotency[key]
	if !ok {
		return nil, nil
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *Store) ListByPair(_ context.Context, productID, warehouseID string, asc bool, limit, offset int) ([]*entity.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	movs := s.byPair[pairKey{ProductID: productID, WarehouseID: warehouseID}]

	n := len(movs)
	var page []*entity.Movement
	if asc {
		for i := offset; i < n && len(page) < limit; i++ {
			cp := *movs[i]
			page = append(page, &cp)
		}
	} else {
		for i := n - 1 - offset; i >= 0 && len(page) < limit; i-- {
			cp := *movs[i]
			page = append(page, &cp)
		}
	}
	return page, nil
}

// ─── BalanceRepository ───────────────────────────────────────────────────────

func (s *Store) Get(_ context.Context, productID, warehouseID string) (*entity.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.balances[pairKey{ProductID: productID, WarehouseID: warehouseID}]
	if !ok {
		return entity.ZeroBalance(productID, warehouseID), nil
	}
	cp := b
	return &cp, nil
}

// GetForUpdate en memoria equivale a Get: la exclusión por par la da el motor.
func (s *Store) GetForUpdate(ctx context.Context, productID, warehouseID string) (*entity.Balance, error) {
	return s.Get(ctx, productID, warehouseID)
}

func (s *Store) Upsert(_ context.Context, balance *entity.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextApply != nil {
		err := s.failNextApply
		s.failNextApply = nil
		return err
	}
	key := pairKey{ProductID: balance.ProductID, WarehouseID: balance.WarehouseID}
	s.balances[key] = *balance
	return nil
}

func (s *Store) ListByWarehouse(_ context.Context, warehouseID string, limit, offset int) ([]*entity.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []*entity.Balance
	for key, b := range s.balances {
		if key.WarehouseID == warehouseID {
			cp := b
			all = append(all, &cp)
		}
	}
	return paginate(all, limit, offset), nil
}

func (s *Store) ListBelowMinimum(_ context.Context, warehouseID string) ([]repository.LowStockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []repository.LowStockItem
	for _, p := range s.products {
		if !p.Active || !p.MinStock.IsPositive() {
			continue
		}
		current := s.balances[pairKey{ProductID: p.ID, WarehouseID: warehouseID}].Quantity
		if current.LessThan(p.MinStock) {
			items = append(items, repository.LowStockItem{
				ProductID:    p.ID,
				SKU:          p.SKU,
				ProductName:  p.Name,
				CurrentStock: current,
				MinStock:     p.MinStock,
			})
		}
	}
	return items, nil
}

// ─── ProductStore ────────────────────────────────────────────────────────────

// ProductStore repositorio de productos sobre el almacén en memoria.
type ProductStore struct {
	s *Store
}

func (r *ProductStore) Create(_ context.Context, product *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.products {
		if p.SKU == product.SKU {
			return domain.ErrDuplicate
		}
	}
	cp := *product
	r.s.products[product.ID] = &cp
	return nil
}

func (r *ProductStore) GetByID(_ context.Context, id string) (*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *ProductStore) GetBySKU(_ context.Context, sku string) (*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.products {
		if p.SKU == sku {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *ProductStore) List(_ context.Context, limit, offset int) ([]*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var all []*entity.Product
	for _, p := range r.s.products {
		cp := *p
		all = append(all, &cp)
	}
	return paginate(all, limit, offset), nil
}

// ─── WarehouseStore ──────────────────────────────────────────────────────────

// WarehouseStore repositorio de bodegas sobre el almacén en memoria.
type WarehouseStore struct {
	s *Store
}

func (r *WarehouseStore) Create(_ context.Context, warehouse *entity.Warehouse) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, w := range r.s.warehouses {
		if w.Name == warehouse.Name {
			return domain.ErrDuplicate
		}
	}
	cp := *warehouse
	r.s.warehouses[warehouse.ID] = &cp
	return nil
}

func (r *WarehouseStore) GetByID(_ context.Context, id string) (*entity.Warehouse, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	w, ok := r.s.warehouses[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *WarehouseStore) List(_ context.Context, limit, offset int) ([]*entity.Warehouse, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var all []*entity.Warehouse
	for _, w := range r.s.warehouses {
		cp := *w
		all = append(all, &cp)
	}
	return paginate(all, limit, offset), nil
}

func paginate[T any](list []T, limit, offset int) []T {
	if offset >= len(list) {
		return nil
	}
	list = list[offset:]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}
