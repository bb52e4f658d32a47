// Package httputil provides shared HTTP response/request utilities for handlers.
//
// Every handler file should use these helpers instead of writing raw
// http.ResponseWriter calls. Every outward-facing response — success or
// failure — is the same JSON envelope with a boolean success flag and a
// human-readable message; no error ever escapes as a bare 500.
package httputil
