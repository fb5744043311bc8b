// Package store persists engine state in pebble. Each state-changing
// operation writes one synced batch, so the durable view moves from one
// consistent post-operation state to the next with nothing in between.
package store
