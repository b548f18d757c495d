// Package httpapi serves the sign-in flows over HTTP.
//
// Layout:
//   - handler.go    Handler and its dependencies
//   - routes.go     route registration
//   - middleware.go request logging, panic recovery, client IP
//   - response.go   JSON and popup responses
//   - popup.go      the callback page that hands the result to the opener
//
// Every flow outcome is written as its Result payload with status 200; only
// transport failures (unknown provider, malformed form, internal errors) use
// other status codes.
package httpapi
