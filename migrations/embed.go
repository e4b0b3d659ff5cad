package migrations

import "embed"

// FS holds the SQL migrations applied at start-up.
//
//go:embed *.up.sql
var FS embed.FS
