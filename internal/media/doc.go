// Package media provides the image conversion pipeline: decoding with
// auto-orientation, fitting within a maximum dimension, and encoding to
// JPEG, PNG or WebP under an optional output size target.
//
// JPEG and PNG are encoded with imaging; WebP is exported through libvips,
// which is initialized lazily on first use or explicitly with InitVips.
package media
