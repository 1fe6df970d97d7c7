package dummydb

import (
	"context"
	"sync"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/assignment"
	"github.com/foureyes/bando/core/candidature"
	"github.com/foureyes/bando/core/notice"
	"github.com/foureyes/bando/core/rating"
	"github.com/foureyes/bando/core/user"
)

type (
	// DB is an in-memory store. Every repository of a DB shares one lock.
	DB struct {
		sync.RWMutex
		tables

		txMu   sync.Mutex // serializes units of work
		faults map[string]error
	}

	tables struct {
		users         map[string]user.User
		notices       map[string]notice.Notice
		articles      map[int64]notice.Article
		criteria      map[criterionKey]notice.EvaluationCriterion
		assignments   map[int64]assignment.Assignment
		sheets        map[string]notice.ApplicationSheet
		comments      map[string]notice.Comment
		ratings       map[rating.Key]rating.Rating
		candidatures  map[candidature.Key]candidature.Candidature
		documents     map[documentKey]candidature.Document
		articleSeq    int64
		assignmentSeq int64
	}

	criterionKey struct{ protocol, name string }
	documentKey  struct {
		candidature.Key
		fileName string
	}
)

func Open() (*DB, error) {
	return &DB{tables: newTables(), faults: make(map[string]error)}, nil
}

func newTables() tables {
	return tables{
		users:        make(map[string]user.User),
		notices:      make(map[string]notice.Notice),
		articles:     make(map[int64]notice.Article),
		criteria:     make(map[criterionKey]notice.EvaluationCriterion),
		assignments:  make(map[int64]assignment.Assignment),
		sheets:       make(map[string]notice.ApplicationSheet),
		comments:     make(map[string]notice.Comment),
		ratings:      make(map[rating.Key]rating.Rating),
		candidatures: make(map[candidature.Key]candidature.Candidature),
		documents:    make(map[documentKey]candidature.Document),
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.notices {
		c.notices[k] = v
	}
	for k, v := range t.articles {
		c.articles[k] = v
	}
	for k, v := range t.criteria {
		c.criteria[k] = v
	}
	for k, v := range t.assignments {
		c.assignments[k] = v
	}
	for k, v := range t.sheets {
		c.sheets[k] = v
	}
	for k, v := range t.comments {
		c.comments[k] = v
	}
	for k, v := range t.ratings {
		c.ratings[k] = v
	}
	for k, v := range t.candidatures {
		c.candidatures[k] = v
	}
	for k, v := range t.documents {
		c.documents[k] = v
	}
	c.articleSeq = t.articleSeq
	c.assignmentSeq = t.assignmentSeq
	return c
}

// FailOn makes every call to op fail with err until it is cleared with a nil err.
// op is "<table>.<Method>", e.g. "articles.FindByNotice".
func (db *DB) FailOn(op string, err error) {
	db.Lock()
	defer db.Unlock()
	if err == nil {
		delete(db.faults, op)
		return
	}
	db.faults[op] = err
}

// fault must be called with the lock held.
func (db *DB) fault(op string) error {
	if err, ok := db.faults[op]; ok {
		return core.NewPersistenceError(op, err)
	}
	return nil
}

// Transactor runs units of work one at a time, restoring every table when one fails.
type Transactor struct {
	db *DB
}

var _ core.Transactor = (*Transactor)(nil)

func NewTransactor(db *DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) WithinTx(ctx context.Context, fn core.TxFunc) (err error) {
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()

	t.db.RLock()
	snapshot := t.db.tables.clone()
	t.db.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			t.restore(snapshot)
			panic(p)
		}
	}()

	if err = fn(ctx, nil); err != nil {
		t.restore(snapshot)
	}
	return err
}

func (t *Transactor) restore(snapshot tables) {
	t.db.Lock()
	t.db.tables = snapshot
	t.db.Unlock()
}

// MaxConcurrency is 0: the in-memory tables accept concurrent statements.
func (t *Transactor) MaxConcurrency() int { return 0 }
