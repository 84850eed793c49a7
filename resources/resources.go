package resources

import "embed"

// FS holds the SQL migrations and the moderation word lists.
//
//go:embed migrations/*.sql wordlists.yml
var FS embed.FS
