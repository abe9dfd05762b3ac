// Package tools provides reusable runtime helpers shared by orchestrator modules.
//
// Ownership boundary:
// - command execution helpers for external CLI integrations
package tools
