// Package tx carries a database transaction through a context so that stores
// called from inside a ledger shard transaction join it.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

// WithTx returns ctx carrying sqlTx. A nil transaction leaves ctx unchanged.
func WithTx(ctx context.Context, sqlTx *sql.Tx) context.Context {
	if sqlTx == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, sqlTx)
}

// From returns the transaction carried by ctx, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	sqlTx, ok := ctx.Value(ctxKey{}).(*sql.Tx)
	return sqlTx, ok && sqlTx != nil
}
