package validation

import (
	"errors"
	"fmt"
)

// 校验错误类别, 使用 errors.Is 判断
var (
	ErrInvalidCashAmount = errors.New("invalid cash amount")
	ErrInvalidSymbol     = errors.New("invalid symbol")
	ErrMissingPriceData  = errors.New("missing price data")
	ErrEmptyIndex        = errors.New("index is empty")
	ErrEmptyPortfolio    = errors.New("portfolio is empty")
	ErrInsufficientData  = errors.New("insufficient data")
	ErrInvalidWeight     = errors.New("invalid weight")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrInvalidShares     = errors.New("invalid shares")
)

// ValidationError 带出错值的校验错误
type ValidationError struct {
	Kind  error
	Value string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Value)
}

// Unwrap 返回错误类别
func (e *ValidationError) Unwrap() error {
	return e.Kind
}

func newError(kind error, value interface{}) *ValidationError {
	v := ""
	if value != nil {
		v = fmt.Sprint(value)
	}
	return &ValidationError{Kind: kind, Value: v}
}
