// Package db opens the SQLite databases backing the tracking index.
//
// The pure-Go ncruces driver is the default. Building with
// -tags sqlite3_cgo switches to mattn/go-sqlite3.
package db
