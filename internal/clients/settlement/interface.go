package settlement

import "context"

// SettlementInterface moves settlement currency between accounts.
//
//go:generate mockery --name=SettlementInterface --output=../../../tests/mocks --outpkg=mocks --filename=mock_settlement_client.go
type SettlementInterface interface {
	Transfer(ctx context.Context, from, to string, amount uint64) error
	Balance(ctx context.Context, account string) (uint64, error)
}

type idempotencyKeyCtxKey struct{}

// WithIdempotencyKey makes transfers issued with the returned ctx carry key
// instead of a fresh one.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtxKey{}, key)
}

func IdempotencyKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyCtxKey{}).(string)
	return key
}
