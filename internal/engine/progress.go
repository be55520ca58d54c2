package engine

import (
	"strconv"
	"strings"
	"sync"
)

// progressParser turns ffmpeg's -progress key=value stream into a fraction
// of the expected output duration. The duration comes from a -t argument
// when present, otherwise from the first "Duration:" line in the log.
type progressParser struct {
	mu    sync.Mutex
	total float64
	fixed bool
}

func newProgressParser(args []string) *progressParser {
	p := &progressParser{}
	for i := 0; i+1 < len(args); i++ {
		if args[i] != "-t" {
			continue
		}
		if secs, ok := parseClock(args[i+1]); ok && secs > 0 {
			p.total = secs
			p.fixed = true
		}
	}
	return p
}

func (p *progressParser) logLine(line string) {
	idx := strings.Index(line, "Duration:")
	if idx < 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fixed || p.total > 0 {
		return
	}
	rest := strings.TrimSpace(line[idx+len("Duration:"):])
	value, _, _ := strings.Cut(rest, ",")
	if secs, ok := parseClock(value); ok && secs > 0 {
		p.total = secs
	}
}

func (p *progressParser) progressLine(line string) (float64, bool) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return 0, false
	}
	switch key {
	case "progress":
		if value == "end" {
			return 1, true
		}
		return 0, false
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds.
		us, err := strconv.ParseFloat(value, 64)
		if err != nil || us < 0 {
			return 0, false
		}
		p.mu.Lock()
		total := p.total
		p.mu.Unlock()
		if total <= 0 {
			return 0, false
		}
		frac := us / 1e6 / total
		if frac > 1 {
			frac = 1
		}
		return frac, true
	}
	return 0, false
}

// parseClock parses "HH:MM:SS(.ff)", "MM:SS" or plain seconds.
func parseClock(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0, false
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}
	var total float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 {
			return 0, false
		}
		total = total*60 + v
	}
	return total, true
}
