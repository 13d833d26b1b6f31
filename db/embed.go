// Package db embeds the PostgreSQL schema of the marketplace.
package db

import _ "embed"

// Schema creates every marketplace table. It is idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string
