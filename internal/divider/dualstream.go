package divider

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/lunavoice/lunavoice/pkg/types"
)

// The pair pattern crosses line breaks: models freely put newlines between
// the display and speech halves.
var (
	dualStreamPairRe     = regexp.MustCompile(`(?s)<show>(.*?)</show>\s*<say>(.*?)</say>`)
	dualStreamUnclosedRe = regexp.MustCompile(`(?s)<show>(.*?)(?:</show>|$)`)
)

// processDualStream consumes complete <show>/<say> pairs from the buffer.
// Each pair yields one unit carrying both the display text and an explicit
// speech text.
func (d *Divider) processDualStream() []types.SentenceUnit {
	var units []types.SentenceUnit
	for {
		loc := dualStreamPairRe.FindStringSubmatchIndex(d.buf)
		if loc == nil {
			break
		}

		display := strings.TrimSpace(d.buf[loc[2]:loc[3]])
		say := strings.TrimSpace(d.buf[loc[4]:loc[5]])
		units = append(units, types.SentenceUnit{
			Text:       display,
			Tags:       []types.TagInfo{{State: types.TagNone}},
			TTSText:    say,
			HasTTSText: true,
		})

		d.buf = d.buf[loc[1]:]
		d.firstSentence = false
	}
	return units
}

// flushDualStream drains remaining complete pairs, then salvages what is
// left: an unclosed <show> block is emitted with its display text doubling
// as speech text, and non-tag residue (a model that ignored the format) is
// emitted verbatim with a warning.
func (d *Divider) flushDualStream() []types.SentenceUnit {
	units := d.processDualStream()

	remaining := strings.TrimSpace(d.buf)
	d.buf = ""
	if remaining == "" {
		return units
	}

	if m := dualStreamUnclosedRe.FindStringSubmatch(remaining); m != nil {
		display := strings.TrimSpace(m[1])
		if display != "" {
			units = append(units, types.SentenceUnit{
				Text:       display,
				Tags:       []types.TagInfo{{State: types.TagNone}},
				TTSText:    display,
				HasTTSText: true,
			})
		}
		return units
	}

	if !strings.HasPrefix(remaining, "<") {
		slog.Warn("dual-stream output without show/say tags", "text", remaining)
		units = append(units, types.SentenceUnit{
			Text:       remaining,
			Tags:       []types.TagInfo{{State: types.TagNone}},
			TTSText:    remaining,
			HasTTSText: true,
		})
	}
	return units
}
