// Package migrations embeds the tern SQL migrations for the cihui schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
