// Package capture records raw client exchanges for debugging.
//
// Each exchange holds the bytes read from the game client and the bytes
// written back, with its route (intercept or forward), timing and error.
// The recording mode keeps requests, responses or both. Exchanges are
// kept in memory or in a SQLite database, capped at a configured number of
// entries, and listed with `cuse captures list`.
package capture
