package migrations

import "embed"

// FS contiene los scripts SQL de goose.
//
//go:embed *.sql
var FS embed.FS
