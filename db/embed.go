// Package db embeds the SQL schema the service applies at startup.
package db

import _ "embed"

// Schema holds the DDL for the catalog, offer, and sale tables.
//
//go:embed migrations/001_schema.sql
var Schema string
