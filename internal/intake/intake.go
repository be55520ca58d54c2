package intake

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Upload is one file selected by the user.
type Upload struct {
	Name string
	Data []byte
	// ContentType is the declared type, if any. Select fills it in from the
	// content when it is missing or generic.
	ContentType string
}

// Size returns the file size in bytes.
func (u Upload) Size() int64 { return int64(len(u.Data)) }

// Ext returns the lowercase extension without the leading dot.
func (u Upload) Ext() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(u.Name), "."))
}

// Stem returns the base name without its extension.
func (u Upload) Stem() string {
	base := filepath.Base(u.Name)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Rule is the intake policy of one tool.
type Rule struct {
	MaxBytes int64
	Accept   Accept
	Multiple bool
}

// LimitLabel renders MaxBytes the way limits are shown to users, e.g. "200MB".
func (r Rule) LimitLabel() string {
	return strconv.FormatInt(r.MaxBytes/(1024*1024), 10) + "MB"
}

// Rejection explains why a selected file was not accepted.
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func (r Rejection) Error() string {
	return r.Name + ": " + r.Reason
}

// Select applies rule to files. Accepted files keep their selection order and
// each appears once; every other file yields a Rejection. A rule without
// Multiple keeps only the first accepted file.
func Select(files []Upload, rule Rule) ([]Upload, []Rejection) {
	var accepted []Upload
	var rejected []Rejection

	for _, f := range files {
		if rule.MaxBytes > 0 && f.Size() > rule.MaxBytes {
			rejected = append(rejected, Rejection{
				Name:   f.Name,
				Reason: fmt.Sprintf("file size exceeds %s", rule.LimitLabel()),
			})
			continue
		}

		f.ContentType = resolveType(f)
		if !rule.Accept.Matches(f.Name, f.ContentType) {
			rejected = append(rejected, Rejection{
				Name:   f.Name,
				Reason: "file type is not supported",
			})
			continue
		}

		accepted = append(accepted, f)
	}

	if !rule.Multiple && len(accepted) > 1 {
		accepted = accepted[:1]
	}
	return accepted, rejected
}

func resolveType(f Upload) string {
	declared := baseType(f.ContentType)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if len(f.Data) == 0 {
		return declared
	}
	return baseType(mimetype.Detect(f.Data).String())
}

func baseType(ct string) string {
	ct, _, _ = strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

// OutputName derives a download name "<stem>_<suffix>.<ext>" from the
// original file name.
func OutputName(original, suffix, ext string) string {
	stem := Upload{Name: original}.Stem()
	if stem == "" {
		return suffix + "." + ext
	}
	return stem + "_" + suffix + "." + ext
}

// FormatSize renders a byte count with binary units, e.g. "1.5 MB".
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	v := float64(bytes)
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + units[i]
}
