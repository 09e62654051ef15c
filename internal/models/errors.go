package models

import "errors"

// ErrNegativeAmount indicates a decrement that would drive a balance or
// counter below zero. This points at event misordering or bad upstream
// data, so it is surfaced distinctly instead of clamped. Handlers wrap it
// with fmt.Errorf("...: %w", err) so callers can still match with
// errors.Is.
var ErrNegativeAmount = errors.New("amount would become negative")
