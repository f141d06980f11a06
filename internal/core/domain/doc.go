// Package domain contains the core business entities for soprev.
// It has no dependencies on infrastructure; adapters convert to and
// from these types at the edges.
package domain
