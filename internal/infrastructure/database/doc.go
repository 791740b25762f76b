// Package database provides relational store connectivity for Quantum Task Core.
//
// This package manages:
//   - SQLite connections (WAL mode, busy timeout, foreign keys, one writer)
//   - PostgreSQL connections through lib/pq
//   - Dialect handling: queries are written with ? placeholders and rebound,
//     and the fetch-and-claim select gets FOR UPDATE SKIP LOCKED on PostgreSQL
//   - Schema migrations per dialect, embedded into the binary
//   - Transaction helpers
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - SQLite database file permissions are set to 0600
//   - PostgreSQL credentials come from the secrets provider and are URL-escaped
//
// Usage:
//
//	db, err := database.Open(database.Config{Driver: "sqlite3", Path: "./data/qtask.db"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration Strategy:
//
// Migration files live under migrations/<dialect>/ and are named
// YYYYMMDD_HHMMSS_description.up.sql with a matching .down.sql.
// Each dialect directory carries the same versions.
package database
