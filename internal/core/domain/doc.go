// Package domain contains the core domain types: the raw configuration
// record, validated settings, and the resource plan.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain
