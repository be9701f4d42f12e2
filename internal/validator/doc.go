// Package validator checks a workflow definition against a registry
// snapshot for structural correctness before it is handed to the executor.
// Validation never mutates its inputs and is pure: running it twice on
// identical inputs produces identical output.
package validator
