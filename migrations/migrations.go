// Package migrations embeds the goose migrations for the credential and academic databases.
package migrations

import "embed"

// Directories inside FS holding each store's migrations.
const (
	AuthDir = "auth"
	ErpDir  = "erp"
)

// FS holds both schemas.
//
//go:embed auth/*.sql erp/*.sql
var FS embed.FS
