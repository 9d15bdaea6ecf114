// Package util holds helpers shared by the db engines: the seeded key hash the heap
// engine picks shards with, and the size histograms and distribution statistics
// reported by GetInfo.
package util
