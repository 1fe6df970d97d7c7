// Package appfs holds the files embedded in the binaries: SQL migrations per engine and email templates.
package appfs

import "embed"

//go:embed migrations templates
var FS embed.FS
