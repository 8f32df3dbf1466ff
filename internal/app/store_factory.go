package app

import (
	"strings"

	"github.com/hankai/housecup/internal/store"
	"github.com/hankai/housecup/internal/store/postgres"
	"github.com/hankai/housecup/internal/store/sqlite"
)

func NewStore(dsn string) (store.KVStore, error) {
	if strings.HasPrefix(dsn, "postgres") {
		return postgres.NewPostgresStore(dsn)
	}
	return sqlite.NewSQLiteStore(dsn)
}
