// Package api defines the transport types shared between the daemon HTTP
// server and the CLI client, plus the converters from internal models.
package api
