// internal/validator/validator.go

// Package validator проверяет, что тикер существует у поставщика данных.
package validator

import "context"

// Validator отвечает, известен ли символ поставщику.
// (false, nil) — символ точно неизвестен; ошибка — проверку выполнить не удалось.
type Validator interface {
	Validate(ctx context.Context, symbol string) (bool, error)
}

// Func адаптирует функцию к Validator.
type Func func(ctx context.Context, symbol string) (bool, error)

func (f Func) Validate(ctx context.Context, symbol string) (bool, error) { return f(ctx, symbol) }
