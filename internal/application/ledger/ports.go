package ledger

import (
	"context"

	"github.com/abastia/kardex-api/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción del almacén, pasando
// repositorios atados a esa tx. Garantiza que el append del movimiento y la
// aplicación al saldo viajen como una sola transacción lógica.
//
// Un runner puede no ser atómico (ej. el driver en memoria): en ese caso el append
// puede quedar durable aunque la aplicación del saldo falle. El motor resuelve esa
// divergencia con Rebuild: el historial de movimientos es siempre la verdad.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		movRepo repository.MovementRepository,
		balanceRepo repository.BalanceRepository,
	) error) error
}
