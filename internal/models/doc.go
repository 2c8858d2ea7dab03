// Package models defines the records the point-of-sale client caches from the backend.
//
// # Ownership
//
// Every record except CartItem is owned by the backend. The client holds
// read-only snapshots that are refreshed wholesale on fetch; the only field
// the client ever mutates locally is Order.Status (optimistically, with
// rollback).
//
// # Wire format
//
// Field tags follow the backend's snake_case JSON. Decimal amounts arrive
// either as JSON numbers or as strings, so they are decoded through Money.
//
// # Identity
//
// Records are keyed by their integer backend ID. The cart is keyed by
// product ID and never holds two lines for the same product.
package models
