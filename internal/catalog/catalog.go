// Package catalog describes the tools the application offers and the intake
// policy of each.
package catalog

import (
	"sort"

	"media-toolbox/internal/intake"
)

// ID identifies a tool. It doubles as the URL slug and engine session name.
type ID string

// Tool identifiers.
const (
	PDFOptimizer   ID = "pdf-optimizer"
	AudioMerge     ID = "audio-merge"
	AudioSplit     ID = "audio-split"
	ImageConverter ID = "image-converter"
	VideoConverter ID = "video-converter"
)

const mb = 1024 * 1024

// Tool is the static description of one tool page.
type Tool struct {
	ID          ID
	Title       string
	Description string
	// Accept uses HTML accept attribute syntax.
	Accept    string
	MaxSizeMB int64
	Multiple  bool
	MinInputs int
	// UsesEngine is true for tools driven through a transcoding engine
	// session.
	UsesEngine bool
	// Failure is shown when an operation fails without a usable message.
	Failure string
}

// Rule returns the intake rule for the tool.
func (t Tool) Rule() intake.Rule {
	return intake.Rule{
		MaxBytes: t.MaxSizeMB * mb,
		Accept:   intake.ParseAccept(t.Accept),
		Multiple: t.Multiple,
	}
}

var defaultTools = []Tool{
	{
		ID:          PDFOptimizer,
		Title:       "PDF Optimizer",
		Description: "Reduce PDF file size by rewriting it compactly.",
		Accept:      ".pdf,application/pdf",
		MaxSizeMB:   100,
		MinInputs:   1,
		Failure:     "PDF optimization failed.",
	},
	{
		ID:          AudioMerge,
		Title:       "Audio Merge",
		Description: "Join several audio files into one.",
		Accept:      "audio/*,.mp3,.wav,.ogg,.m4a,.aac,.flac",
		MaxSizeMB:   200,
		Multiple:    true,
		MinInputs:   2,
		UsesEngine:  true,
		Failure:     "Audio merge failed.",
	},
	{
		ID:          AudioSplit,
		Title:       "Audio Split",
		Description: "Cut an audio file into the segments you choose.",
		Accept:      "audio/*,.mp3,.wav,.ogg,.m4a,.aac,.flac",
		MaxSizeMB:   200,
		MinInputs:   1,
		UsesEngine:  true,
		Failure:     "Audio split failed.",
	},
	{
		ID:          ImageConverter,
		Title:       "Image Converter",
		Description: "Convert images between formats and shrink them.",
		Accept:      "image/*,.jpg,.jpeg,.png,.gif,.webp,.bmp,.svg",
		MaxSizeMB:   50,
		MinInputs:   1,
		Failure:     "Image conversion failed.",
	},
	{
		ID:          VideoConverter,
		Title:       "Video Converter",
		Description: "Convert videos between formats.",
		Accept:      "video/*,.mp4,.webm,.avi,.mov,.mkv,.wmv",
		MaxSizeMB:   500,
		MinInputs:   1,
		UsesEngine:  true,
		Failure:     "Video conversion failed.",
	},
}

// Catalog is the ordered set of tools.
type Catalog struct {
	tools []Tool
	byID  map[ID]int
}

// New returns the default tools with size limits overridden from limits,
// keyed by tool ID in megabytes. Non-positive overrides are ignored.
func New(limits map[string]int64) *Catalog {
	c := &Catalog{
		tools: make([]Tool, len(defaultTools)),
		byID:  make(map[ID]int, len(defaultTools)),
	}
	copy(c.tools, defaultTools)
	for i := range c.tools {
		if mbLimit, ok := limits[string(c.tools[i].ID)]; ok && mbLimit > 0 {
			c.tools[i].MaxSizeMB = mbLimit
		}
		c.byID[c.tools[i].ID] = i
	}
	return c
}

// All returns the tools in display order.
func (c *Catalog) All() []Tool {
	out := make([]Tool, len(c.tools))
	copy(out, c.tools)
	return out
}

// Get returns the tool with the given ID.
func (c *Catalog) Get(id ID) (Tool, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Tool{}, false
	}
	return c.tools[i], true
}

// EngineTools returns the IDs of tools that need an engine session, sorted.
func (c *Catalog) EngineTools() []ID {
	var ids []ID
	for _, t := range c.tools {
		if t.UsesEngine {
			ids = append(ids, t.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
