// Package middleware provides the HTTP middleware of the toolbox server.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labeled by route template
//   - Gzip compression of pages and API responses (event streams and
//     downloads pass through untouched)
//   - Cross-origin isolation headers
//
// Every wrapping ResponseWriter implements Unwrap so handlers can reach the
// connection through http.ResponseController.
package middleware
