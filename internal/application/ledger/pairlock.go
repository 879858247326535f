package ledger

import (
	"context"
	"sync"
)

// pairKey identifica una cuenta de stock serializada de forma independiente.
type pairKey struct {
	ProductID   string
	WarehouseID string
}

// pairLocks tabla de locks por (producto, bodega). Dos peticiones sobre el mismo par
// se excluyen mutuamente; pares distintos nunca se bloquean entre sí. La adquisición
// respeta el context: cancelar antes de adquirir no deja efectos secundarios.
type pairLocks struct {
	mu      sync.Mutex
	entries map[pairKey]*lockEntry
}

type lockEntry struct {
	sem  chan struct{} // semáforo de capacidad 1
	refs int           // peticiones usando o esperando la entrada
}

func newPairLocks() *pairLocks {
	return &pairLocks{entries: make(map[pairKey]*lockEntry)}
}

// Acquire toma la sección crítica del par. Devuelve la función de liberación, o el
// error del context si la espera fue cancelada.
func (l *pairLocks) Acquire(ctx context.Context, productID, warehouseID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := pairKey{ProductID: productID, WarehouseID: warehouseID}

	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
		return func() {
			<-entry.sem
			l.release(key, entry)
		}, nil
	case <-ctx.Done():
		l.release(key, entry)
		return nil, ctx.Err()
	}
}

// release decrementa la referencia y elimina la entrada cuando nadie la usa, para
// que la tabla no crezca sin límite con pares fríos.
func (l *pairLocks) release(key pairKey, entry *lockEntry) {
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}
