// Package migrations содержит встроенные SQL-миграции (формат golang-migrate: NNNNNN_name.up.sql / .down.sql).
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
