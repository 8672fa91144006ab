// Package database provides connection management over bun and GORM,
// configuration loading, migrations, error classification, logging, health
// checks and related utilities.
package database
