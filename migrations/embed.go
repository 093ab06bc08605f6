// Package migrations embeds the golang-migrate SQL files so the server and the
// migrate CLI can run them without a checkout.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
