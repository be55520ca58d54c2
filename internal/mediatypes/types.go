package mediatypes

import (
	"fmt"
	"strings"
)

// FileType represents the broad category of an input file.
type FileType string

const (
	// FileTypeImage represents an image file.
	FileTypeImage FileType = "image"
	// FileTypeVideo represents a video file.
	FileTypeVideo FileType = "video"
	// FileTypeAudio represents an audio file.
	FileTypeAudio FileType = "audio"
	// FileTypeDocument represents a PDF document.
	FileTypeDocument FileType = "document"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// ImageExtensions maps file extensions to whether they are recognized image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".svg":  true,
}

// VideoExtensions maps file extensions to whether they are recognized video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
}

// AudioExtensions maps file extensions to whether they are recognized audio formats.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".m4a":  true,
	".aac":  true,
	".flac": true,
}

// DocumentExtensions maps file extensions to whether they are recognized documents.
var DocumentExtensions = map[string]bool{
	".pdf": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".svg":  "image/svg+xml",

	// Videos
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",

	// Audio
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".flac": "audio/flac",

	// Documents
	".pdf": "application/pdf",
}

// GetFileType returns the FileType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
func GetFileType(ext string) FileType {
	switch {
	case ImageExtensions[ext]:
		return FileTypeImage
	case VideoExtensions[ext]:
		return FileTypeVideo
	case AudioExtensions[ext]:
		return FileTypeAudio
	case DocumentExtensions[ext]:
		return FileTypeDocument
	}
	return FileTypeOther
}

// GetMimeType returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// AudioFormat is an audio output format.
type AudioFormat string

// Audio output formats.
const (
	AudioMP3 AudioFormat = "mp3"
	AudioWAV AudioFormat = "wav"
	AudioOGG AudioFormat = "ogg"
	AudioM4A AudioFormat = "m4a"
)

// AudioFormats lists the audio output formats in display order.
var AudioFormats = []AudioFormat{AudioMP3, AudioWAV, AudioOGG, AudioM4A}

// MimeType returns the content type of the format.
func (f AudioFormat) MimeType() string { return GetMimeType("." + string(f)) }

// ParseAudioFormat validates s as an audio output format.
func ParseAudioFormat(s string) (AudioFormat, error) {
	f := AudioFormat(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AudioFormats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported audio format %q", s)
}

// VideoFormat is a video output format.
type VideoFormat string

// Video output formats.
const (
	VideoMP4  VideoFormat = "mp4"
	VideoWebM VideoFormat = "webm"
	VideoAVI  VideoFormat = "avi"
	VideoMOV  VideoFormat = "mov"
)

// VideoFormats lists the video output formats in display order.
var VideoFormats = []VideoFormat{VideoMP4, VideoWebM, VideoAVI, VideoMOV}

// MimeType returns the content type of the format.
func (f VideoFormat) MimeType() string { return GetMimeType("." + string(f)) }

// ParseVideoFormat validates s as a video output format.
func ParseVideoFormat(s string) (VideoFormat, error) {
	f := VideoFormat(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range VideoFormats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported video format %q", s)
}

// ImageFormat is an image output format.
type ImageFormat string

// Image output formats.
const (
	ImageJPEG ImageFormat = "jpeg"
	ImagePNG  ImageFormat = "png"
	ImageWebP ImageFormat = "webp"
)

// ImageFormats lists the image output formats in display order.
var ImageFormats = []ImageFormat{ImageJPEG, ImagePNG, ImageWebP}

// MimeType returns the content type of the format.
func (f ImageFormat) MimeType() string { return GetMimeType("." + string(f)) }

// ParseImageFormat validates s as an image output format. "jpg" is accepted
// as an alias for jpeg.
func ParseImageFormat(s string) (ImageFormat, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "jpg" {
		v = string(ImageJPEG)
	}
	f := ImageFormat(v)
	for _, known := range ImageFormats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported image format %q", s)
}

// Quality is a three-level quality tier.
type Quality string

// Quality tiers.
const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Qualities lists the tiers in display order.
var Qualities = []Quality{QualityLow, QualityMedium, QualityHigh}

// ParseQuality validates s as a quality tier. An empty string yields medium.
func ParseQuality(s string) (Quality, error) {
	v := Quality(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return QualityMedium, nil
	}
	for _, known := range Qualities {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("unsupported quality %q", s)
}
