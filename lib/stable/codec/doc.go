// Package codec defines how keys and values of the stable structures are turned into
// bytes, together with the size bounds the storage layout is derived from.
package codec
