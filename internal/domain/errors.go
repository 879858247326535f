package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound            = errors.New("recurso no encontrado")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrDuplicate           = errors.New("recurso duplicado")
	ErrCantidadInvalida    = errors.New("la cantidad debe ser mayor a 0")
	ErrFraccionNoPermitida = errors.New("el producto no permite fracciones")
	ErrInsufficientStock   = errors.New("stock insuficiente")
	ErrStorageUnavailable  = errors.New("almacenamiento no disponible")
	ErrInconsistency       = errors.New("saldo inconsistente con el historial de movimientos")
)
