// Package pdfopt rewrites PDF documents compactly using pdfcpu.
//
// Optimize reads a document in relaxed mode, removes duplicate resources and
// writes it back with object streams and a cross-reference stream. The
// quality tier only affects how often page progress is reported.
package pdfopt
