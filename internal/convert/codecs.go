package convert

import (
	"fmt"

	"media-toolbox/internal/mediatypes"
)

var audioCodecs = map[mediatypes.AudioFormat][]string{
	mediatypes.AudioMP3: {"-c:a", "libmp3lame", "-q:a", "2"},
	mediatypes.AudioWAV: {},
	mediatypes.AudioOGG: {"-c:a", "libvorbis", "-q:a", "5"},
	mediatypes.AudioM4A: {"-c:a", "aac", "-b:a", "192k"},
}

var videoCodecs = map[mediatypes.VideoFormat][]string{
	mediatypes.VideoMP4:  {"-c:v", "libx264", "-c:a", "aac"},
	mediatypes.VideoWebM: {"-c:v", "libvpx", "-c:a", "libvorbis"},
	mediatypes.VideoAVI:  {"-c:v", "mpeg4", "-c:a", "mp3"},
	mediatypes.VideoMOV:  {"-c:v", "libx264", "-c:a", "aac"},
}

var videoQuality = map[mediatypes.Quality][]string{
	mediatypes.QualityLow:    {"-crf", "28", "-preset", "faster"},
	mediatypes.QualityMedium: {"-crf", "23", "-preset", "medium"},
	mediatypes.QualityHigh:   {"-crf", "18", "-preset", "slow"},
}

// AudioCodecArgs returns the encoder arguments for an audio output format.
// WAV needs none.
func AudioCodecArgs(f mediatypes.AudioFormat) ([]string, error) {
	args, ok := audioCodecs[f]
	if !ok {
		return nil, fmt.Errorf("unsupported audio format %q", f)
	}
	return append([]string(nil), args...), nil
}

// VideoCodecArgs returns the encoder arguments for a video output format.
func VideoCodecArgs(f mediatypes.VideoFormat) ([]string, error) {
	args, ok := videoCodecs[f]
	if !ok {
		return nil, fmt.Errorf("unsupported video format %q", f)
	}
	return append([]string(nil), args...), nil
}

// VideoQualityArgs returns the rate-control arguments for a quality tier.
func VideoQualityArgs(q mediatypes.Quality) ([]string, error) {
	args, ok := videoQuality[q]
	if !ok {
		return nil, fmt.Errorf("unsupported quality %q", q)
	}
	return append([]string(nil), args...), nil
}
