// Package session keeps per-user conversation state for the bot in memory.
//
// A Store owns three maps that always change together under one mutex:
// records, calendar markers and last-activity timestamps. A Sweeper evicts
// identifiers whose activity is older than its period. Nothing here is
// persisted; a restart starts with an empty store.
package session
