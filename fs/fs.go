package appfs

import "embed"

// FS holds the files shipped inside the binaries: SQL migrations & email templates.
//
//go:embed migrations/*.sql all:templates
var FS embed.FS

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "templates/email"
)
