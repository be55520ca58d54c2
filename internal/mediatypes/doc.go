// Package mediatypes provides shared type definitions for the files the
// toolbox accepts and produces.
//
// It has no dependencies beyond the standard library so that every other
// package can import it without creating cycles.
//
// # File Types
//
// GetFileType categorizes an input by extension:
//
//	ext := strings.ToLower(filepath.Ext(filename))
//	switch mediatypes.GetFileType(ext) {
//	case mediatypes.FileTypeAudio:
//	    // Handle audio
//	case mediatypes.FileTypeDocument:
//	    // Handle PDF
//	}
//
// # Output Formats
//
// AudioFormat, VideoFormat and ImageFormat are closed enumerations of the
// formats each tool can produce. Parse functions validate user input and
// MimeType returns the content type used when wrapping results:
//
//	f, err := mediatypes.ParseAudioFormat("ogg")
//	f.MimeType() // "audio/ogg"
//
// Quality is the low/medium/high tier shared by the PDF and video tools.
package mediatypes
