// Package repository defines the sentinel errors shared by the mapping
// store and visit ledger implementations.
package repository

import "errors"

var (
	// ErrShortCodeExists is returned when an attempt is made to create
	// a new mapping with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when no mapping exists for the queried
	// short code or original URL.
	ErrURLNotFound = errors.New("url not found")
)
