// Package upstream implements reverse proxy functionality for the guarded
// origin server, with response time monitoring.
package upstream
