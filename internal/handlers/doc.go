// Package handlers provides the HTTP handlers for the media toolbox pages
// and API.
//
// It includes handlers for:
//   - The tool index and per-tool pages (embedded html/template)
//   - Starting operations from multipart uploads
//   - Operation snapshots, Server-Sent Event progress and result downloads
//   - Engine session states
//   - Health checks and version information
package handlers
