package query

import (
	"context"
	"fmt"

	"github.com/abastia/kardex-api/internal/domain/entity"
	"github.com/abastia/kardex-api/internal/domain/repository"
)

// Service fachada de solo lectura sobre saldos e historial para la capa de
// presentación. Nunca muta estado ni escribe por fuera del motor.
type Service struct {
	movements repository.MovementRepository
	balances  repository.BalanceRepository
}

// NewService construye la fachada de consultas.
func NewService(movements repository.MovementRepository, balances repository.BalanceRepository) *Service {
	return &Service{movements: movements, balances: balances}
}

// CurrentStock devuelve el saldo actual del par; saldo cero si nunca fue tocado.
func (s *Service) CurrentStock(ctx context.Context, productID, warehouseID string) (*entity.Balance, error) {
	balance, err := s.balances.Get(ctx, productID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("consultar saldo %s/%s: %w", productID, warehouseID, err)
	}
	return balance, nil
}

// History devuelve movimientos del par paginados, más reciente primero.
func (s *Service) History(ctx context.Context, productID, warehouseID string, limit, offset int) ([]*entity.Movement, error) {
	movs, err := s.movements.ListByPair(ctx, productID, warehouseID, false, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("consultar historial %s/%s: %w", productID, warehouseID, err)
	}
	return movs, nil
}

// StockByWarehouse lista los saldos de una bodega con paginación.
func (s *Service) StockByWarehouse(ctx context.Context, warehouseID string, limit, offset int) ([]*entity.Balance, error) {
	list, err := s.balances.ListByWarehouse(ctx, warehouseID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listar saldos de bodega %s: %w", warehouseID, err)
	}
	return list, nil
}

// LowStock devuelve los productos bajo su stock mínimo en la bodega indicada.
func (s *Service) LowStock(ctx context.Context, warehouseID string) ([]repository.LowStockItem, error) {
	items, err := s.balances.ListBelowMinimum(ctx, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("listar stock bajo mínimo: %w", err)
	}
	return items, nil
}
