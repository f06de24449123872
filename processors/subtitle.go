package processors

import (
	"regexp"
	"strconv"
	"strings"

	"doubtDesk/core"
)

// Subtitle parsing for SubRip and WebVTT. Both formats reduce to blank-line
// separated blocks carrying one "HH:MM:SS,mmm --> HH:MM:SS,mmm" line; WebVTT
// uses a period before the millis and prepends a header section.

var (
	timeRangeRe  = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}[,.]\d{3})\s*-->\s*(\d{2}:\d{2}:\d{2}[,.]\d{3})`)
	vttHeaderRe  = regexp.MustCompile(`(?i)^WEBVTT[^\n]*\n(\n|[A-Z-]+:[^\n]*\n)*`)
	markupTagRe  = regexp.MustCompile(`<[^>]+>`)
	blockSplitRe = regexp.MustCompile(`\n\n+`)
)

// ParseSubtitles converts raw subtitle text into ordered caption blocks.
// Blocks without a valid timestamp line are skipped; indices embedded in the
// source are ignored in favor of 1-based emission order. Returns
// core.ErrNoContent when nothing usable remains.
func ParseSubtitles(raw string) ([]core.CaptionBlock, error) {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	cleaned := vttHeaderRe.ReplaceAllString(normalized, "")

	var blocks []core.CaptionBlock
	idx := 0
	for _, rawBlock := range blockSplitRe.Split(cleaned, -1) {
		rawBlock = strings.TrimSpace(rawBlock)
		if rawBlock == "" {
			continue
		}
		lines := strings.Split(rawBlock, "\n")
		if len(lines) < 2 {
			continue
		}

		timeLine := -1
		for i, line := range lines {
			if timeRangeRe.MatchString(line) {
				timeLine = i
				break
			}
		}
		if timeLine == -1 {
			continue
		}

		m := timeRangeRe.FindStringSubmatch(lines[timeLine])
		start, err := parseTimestamp(m[1])
		if err != nil {
			continue
		}
		end, err := parseTimestamp(m[2])
		if err != nil {
			continue
		}

		text := strings.Join(lines[timeLine+1:], " ")
		text = strings.TrimSpace(markupTagRe.ReplaceAllString(text, ""))
		if text == "" {
			continue
		}

		idx++
		blocks = append(blocks, core.CaptionBlock{Index: idx, Start: start, End: end, Content: text})
	}

	if len(blocks) == 0 {
		return nil, core.ErrNoContent
	}
	return blocks, nil
}

// parseTimestamp converts "HH:MM:SS,mmm" (comma or period) to fractional
// seconds.
func parseTimestamp(ts string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(ts), ":")
	if len(parts) != 3 {
		return 0, strconv.ErrSyntax
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	secParts := strings.FieldsFunc(parts[2], func(r rune) bool { return r == ',' || r == '.' })
	if len(secParts) != 2 {
		return 0, strconv.ErrSyntax
	}
	seconds, err := strconv.Atoi(secParts[0])
	if err != nil {
		return 0, err
	}
	millis, err := strconv.Atoi(secParts[1])
	if err != nil {
		return 0, err
	}
	return float64(hours)*3600 + float64(minutes)*60 + float64(seconds) + float64(millis)/1000, nil
}
