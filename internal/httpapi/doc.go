// Package httpapi is the thin HTTP surface used by the PWA frontend:
// subscribing to push, recording check-ins, and reading public config and
// the observance window.
package httpapi
