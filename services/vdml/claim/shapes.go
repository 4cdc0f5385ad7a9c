package claim

import (
	"context"
	"fmt"

	"smartport-go/errcode"
	"smartport-go/types"
)

// WithClaim runs fn while holding the port. The claim is released when fn
// returns or panics.
func (g *Guard) WithClaim(ctx context.Context, port int, expected types.DeviceType, fn func(t *Token) error) error {
	tok, err := g.TryClaim(ctx, port, expected)
	if err != nil {
		return err
	}
	defer tok.Release()
	return fn(tok)
}

// HandleAs casts the token's opaque handle to the vendor interface an
// accessor expects.
func HandleAs[V any](t *Token) (V, error) {
	v, ok := t.Handle().(V)
	if !ok {
		var zero V
		return zero, &errcode.E{
			C:    errcode.Unsupported,
			Op:   "handle",
			Port: t.Port(),
			Msg:  fmt.Sprintf("%s handle is %T", t.Type(), t.Handle()),
		}
	}
	return v, nil
}

// Try is the struct-shaped call: on any failure the whole errValue comes
// back, never a partially filled result.
func Try[V, T any](ctx context.Context, g *Guard, port int, expected types.DeviceType, errValue T, fn func(v V) (T, error)) (T, error) {
	tok, err := g.TryClaim(ctx, port, expected)
	if err != nil {
		return errValue, err
	}
	defer tok.Release()

	v, err := HandleAs[V](tok)
	if err != nil {
		return errValue, err
	}
	out, err := fn(v)
	if err != nil {
		return errValue, err
	}
	return out, nil
}

// Float returns types.ErrFloat on failure.
func Float[V any](ctx context.Context, g *Guard, port int, expected types.DeviceType, fn func(v V) (float64, error)) (float64, error) {
	return Try(ctx, g, port, expected, types.ErrFloat, fn)
}

// Int returns types.ErrInt on failure.
func Int[V any](ctx context.Context, g *Guard, port int, expected types.DeviceType, fn func(v V) (int32, error)) (int32, error) {
	return Try(ctx, g, port, expected, types.ErrInt, fn)
}

// Do is the setter shape: types.Success, or types.ErrInt on failure.
func Do[V any](ctx context.Context, g *Guard, port int, expected types.DeviceType, fn func(v V) error) (int32, error) {
	return Int(ctx, g, port, expected, func(v V) (int32, error) {
		if err := fn(v); err != nil {
			return types.ErrInt, err
		}
		return types.Success, nil
	})
}

// Port converts a 1-indexed accessor port to the internal index. Port 0
// maps to -1, which every lookup rejects as InvalidPort.
func Port(p uint8) int { return int(p) - 1 }
