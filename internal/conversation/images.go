package conversation

import (
	"encoding/json"
	"strings"

	"github.com/lunavoice/lunavoice/pkg/provider/agent"
)

// ParseImages normalizes the images field of an inbound message. Clients
// send either structured attachment objects or bare base64 data-URL
// strings; the latter get their mime type read from the data-URL header,
// defaulting to image/png. Unparseable entries are dropped.
func ParseImages(raw []json.RawMessage) []agent.Image {
	if len(raw) == 0 {
		return nil
	}
	images := make([]agent.Image, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			images = append(images, agent.Image{
				Source:   "upload",
				Data:     s,
				MimeType: dataURLMime(s),
			})
			continue
		}
		var img agent.Image
		if err := json.Unmarshal(r, &img); err == nil && img.Data != "" {
			if img.MimeType == "" {
				img.MimeType = dataURLMime(img.Data)
			}
			if img.Source == "" {
				img.Source = "upload"
			}
			images = append(images, img)
		}
	}
	if len(images) == 0 {
		return nil
	}
	return images
}

// dataURLMime extracts the mime type from a "data:<mime>;base64,…" header.
func dataURLMime(s string) string {
	const fallback = "image/png"
	if !strings.HasPrefix(s, "data:") {
		return fallback
	}
	header, _, ok := strings.Cut(s, ",")
	if !ok {
		return fallback
	}
	mime, ok := strings.CutPrefix(header, "data:")
	if !ok {
		return fallback
	}
	mime, _, _ = strings.Cut(mime, ";")
	if mime == "" {
		return fallback
	}
	return mime
}
