// Package client is a thin HTTP client for the rackmon API, used by the CLI.
// Error responses are turned back into errdefs errors so callers can branch on
// the same classes the server uses.
package client
