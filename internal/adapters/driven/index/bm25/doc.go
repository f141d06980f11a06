// Package bm25 provides keyword search over chunk contents using the
// Okapi BM25 ranking function.
//
// The index lives entirely in memory and is rebuilt from the metadata
// store at startup, keeping it consistent with the database without a
// separate on-disk index to corrupt. Ranking uses k1=1.5 and b=0.75.
package bm25
