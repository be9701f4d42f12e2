// Package cli parses burstflowctl's subcommand surface: validate, run, and
// plugin activate|deactivate|delete.
package cli
