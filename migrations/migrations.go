// Package migrations встраивает SQL-миграции и применяет их через goose.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// FS содержит встроенные файлы миграций.
//
//go:embed *.sql
var FS embed.FS

// Prepare настраивает goose на встроенные миграции Postgres.
func Prepare() error {
	goose.SetBaseFS(FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return nil
}

// Run применяет все ожидающие миграции.
func Run(db *sql.DB) error {
	if err := Prepare(); err != nil {
		return err
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
