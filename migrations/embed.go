// Package migrations embeds the secondary-store schema so the binary can
// migrate on startup without shipping loose SQL files next to it.
package migrations

import "embed"

//go:embed postgres/*.sql
var Postgres embed.FS
