package main

import (
	"database/sql"

	"github.com/trezcool/goose"

	appfs "github.com/foureyes/bando/fs"
	"github.com/foureyes/bando/storage/database"
)

// mockable
var gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
	return goose.RunFS(command, db, appfs.FS, dir, args...)
}

func (cli *commandLine) migrate(args []string) error {
	if err := goose.SetDialect(database.Dialect(cli.engine)); err != nil {
		return err
	}
	return gooseRunFunc(args[0], cli.db, database.MigrationsDir(cli.engine), args[1:]...)
}
