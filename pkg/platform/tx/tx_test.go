package tx

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

// fakeTx satisfies pgx.Tx through the embedded interface; only identity matters here.
type fakeTx struct{ pgx.Tx }

func TestWithTxAndFrom(t *testing.T) {
	ctx := context.Background()

	_, ok := From(ctx)
	assert.False(t, ok)

	assert.Equal(t, ctx, WithTx(ctx, nil), "nil transaction leaves context untouched")

	tx := &fakeTx{}
	got, ok := From(WithTx(ctx, tx))
	assert.True(t, ok)
	assert.Same(t, tx, got)
}

type noBegin struct{}

func (noBegin) Begin(context.Context) (pgx.Tx, error) {
	panic("Begin must not be called when a transaction is already in context")
}

func TestRunReusesContextTransaction(t *testing.T) {
	outer := &fakeTx{}
	ctx := WithTx(context.Background(), outer)

	var seen pgx.Tx
	err := Run(ctx, noBegin{}, func(_ context.Context, tx pgx.Tx) error {
		seen = tx
		return nil
	})
	assert.NoError(t, err)
	assert.Same(t, outer, seen)
}
