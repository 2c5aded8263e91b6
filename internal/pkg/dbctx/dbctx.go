package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context carries the request context and, when the caller is inside a
// transaction, the *gorm.DB for that transaction.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// New returns a Context with no transaction.
func New(ctx context.Context) Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return Context{Ctx: ctx}
}

// Conn returns the transaction when one is set and fallback otherwise, bound to Ctx.
func (c Context) Conn(fallback *gorm.DB) *gorm.DB {
	conn := c.Tx
	if conn == nil {
		conn = fallback
	}
	if conn == nil {
		return nil
	}
	if c.Ctx != nil {
		return conn.WithContext(c.Ctx)
	}
	return conn
}
