// Package db provides the embedded database schema shared by all services.
package db

import _ "embed"

// Schema contains the idempotent DDL for every storefront table.
//
//go:embed migrations/001_schema.sql
var Schema string
