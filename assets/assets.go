// Package assets embeds the files shipped with the binaries.
package assets

import "embed"

//go:embed templates/email
var EmailTemplates embed.FS

// EmailTemplatesDir is the root of EmailTemplates.
const EmailTemplatesDir = "templates/email"
