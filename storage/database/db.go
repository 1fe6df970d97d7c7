package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"
	_ "modernc.org/sqlite"

	"github.com/foureyes/bando/core"
	appfs "github.com/foureyes/bando/fs"
)

const (
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know about
	sqlx.BindDriver(EngineSQLite, sqlx.QUESTION)
}

func dsn(dbName string, admin bool, conf *core.Config) string {
	if conf.Database.Engine == EngineSQLite {
		q := make(url.Values)
		q.Add("_pragma", "foreign_keys(1)")
		q.Add("_pragma", "busy_timeout(5000)")
		return "file:" + dbName + "?" + q.Encode()
	}

	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Database.Engine,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func open(dbName string, admin bool, conf *core.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(conf.Database.Engine, dsn(dbName, admin, conf))
	if err != nil {
		return nil, err
	}
	if conf.Database.Engine == EngineSQLite {
		// an in-memory database lives as long as its single connection
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	} else if conf.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(conf.Database.MaxOpenConns)
	}
	return db, nil
}

// Open connects to the application database and waits for it to answer.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := open(conf.Database.Name, false, conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func queryExists(db *sqlx.DB, q string, args ...interface{}) (bool, error) {
	var exists bool
	err := db.Get(&exists, db.Rebind(q), args...)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return exists, err
}

func createAppUser(db *sqlx.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	exists, err := queryExists(db, "SELECT true FROM pg_roles WHERE rolname = ?", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !exists {
		q := fmt.Sprintf("CREATE USER %q CREATEDB ENCRYPTED PASSWORD '%s'", conf.Database.User, conf.Database.Password)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sqlx.DB, conf *core.Config) error {
	exists, err := queryExists(db, "SELECT true FROM pg_database WHERE datname = ?", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !exists {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %q", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the application role and database on a postgres server.
// SQLite creates its database file on open, so there is nothing to do for it.
func CreateIfNotExist(conf *core.Config) error {
	if conf.Database.Engine != EnginePostgres {
		return nil
	}

	// connect as admin
	db, err := open("postgres", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = ping(db.DB); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(db, conf); err != nil {
		return errors.Wrap(err, "creating app user")
	}

	// create DB as app user
	appDB, err := open("postgres", false, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = appDB.Close() }()

	return errors.Wrap(createDB(appDB, conf), "creating database")
}

// MigrationsDir returns the directory of the embedded migrations written for engine.
func MigrationsDir(engine string) string {
	return "migrations/" + engine
}

// Dialect returns the goose dialect of engine.
func Dialect(engine string) string {
	if engine == EngineSQLite {
		return "sqlite3"
	}
	return engine
}

// Migrate applies every pending migration.
func Migrate(db *sql.DB, engine string) error {
	if err := goose.SetDialect(Dialect(engine)); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}
	if err := goose.RunFS("up", db, appfs.FS, MigrationsDir(engine)); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

// Transactor runs units of work in database transactions.
type Transactor struct {
	db *sqlx.DB
}

var _ core.Transactor = (*Transactor)(nil)

func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTx commits the transaction when fn returns nil, and rolls it back otherwise.
func (t *Transactor) WithinTx(ctx context.Context, fn core.TxFunc) (err error) {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.NewPersistenceError("beginning transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back failed: %v", rbErr)
		}
		return err
	}
	return core.NewPersistenceError("committing transaction", tx.Commit())
}

// MaxConcurrency is 1: a database transaction runs one statement at a time.
func (t *Transactor) MaxConcurrency() int { return 1 }
