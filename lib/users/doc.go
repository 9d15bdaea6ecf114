// Package users defines the record type kept in the map and the demo workload that
// fills it.
package users
