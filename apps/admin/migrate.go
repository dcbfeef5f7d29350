package main

import (
	"github.com/trezcool/semina/storage/database"
)

var migrateFunc = database.Migrate // mockable

func (cli *commandLine) migrate() error {
	return migrateFunc(cli.db)
}
