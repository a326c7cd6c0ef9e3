// Package migrations embeds the SQL schema so the migrate binary carries it.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

const (
	InitUp     = "000001_init_schema.up.sql"
	InitDown   = "000001_init_schema.down.sql"
	MirrorUp   = "000002_shopify_mirror.up.sql"
	MirrorDown = "000002_shopify_mirror.down.sql"
)

// Up lists the files in apply order. Down is its reverse.
var (
	Up   = []string{InitUp, MirrorUp}
	Down = []string{MirrorDown, InitDown}
)
