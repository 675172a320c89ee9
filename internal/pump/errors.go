package pump

import (
	"errors"
	"fmt"
)

var (
	// ErrCurveComplete is returned by every price function once the curve has graduated.
	ErrCurveComplete = errors.New("bonding curve complete")

	// ErrInsufficientLiquidity means the curve cannot fill the requested trade.
	ErrInsufficientLiquidity = errors.New("insufficient curve liquidity")
)

// DecodeError reports a payload that does not match the expected layout.
type DecodeError struct {
	Kind string // "bonding_curve", "global", "create"
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErr(kind string, format string, args ...any) error {
	return &DecodeError{Kind: kind, Err: fmt.Errorf(format, args...)}
}
