// Package app wires together the registry, validator, and executor into
// the operations burstflowctl exposes: validating a workflow, running it
// and streaming its event feed, and managing plugin lifecycle.
package app
