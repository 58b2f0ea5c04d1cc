// Package core implements the bulk CSV import engine: a two-phase
// pipeline that analyzes asset files for manufacturer/model pairs
// missing from the catalog, waits for user confirmation, then upserts
// rows one by one with per-row error isolation and an auditable
// result log.
//
// The engine is independent of HTTP and persistence details: callers
// hand it a staged file path and an entity type, storage goes through
// the Store interface.
package core
