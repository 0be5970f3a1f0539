// Package store persists family-sharing data. Every store works against a
// database.Querier so it can run on the pool or inside a transaction.
package store

import "time"

// now is the clock used for created_at/updated_at columns.
var now = func() time.Time { return time.Now().UTC() }
