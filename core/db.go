package core

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type (
	// DBExecutor is satisfied by *sqlx.DB and *sqlx.Tx.
	DBExecutor interface {
		sqlx.ExtContext
	}

	// TxFunc is a unit of work. Every repository call it makes must be given exec
	// so that the calls share the transaction.
	TxFunc func(ctx context.Context, exec DBExecutor) error

	// Transactor runs a unit of work atomically: fn's writes are committed when it
	// returns nil and rolled back otherwise.
	Transactor interface {
		WithinTx(ctx context.Context, fn TxFunc) error
		// MaxConcurrency is how many statements may run at once inside one transaction.
		MaxConcurrency() int
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// GetExec returns the first non-nil executor in svcExec, or def.
func GetExec(def DBExecutor, svcExec []DBExecutor) DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return def
}
