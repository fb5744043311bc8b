// Package book implements the matching core: limit orders, per-side
// indexed priority queues, and the price-time priority matching loop.
//
// The package is pure domain logic. It does no I/O, holds no locks and
// knows nothing about persistence; a book assumes exactly one writer at
// a time and the service layer provides that guarantee.
package book
