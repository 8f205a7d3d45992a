// Package captions turns transcript segments into SRT/TXT exports and
// styled ASS overlay scripts for burn-in.
package captions

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Segment is one timed span of transcribed speech. Times are seconds.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// msEpsilon absorbs float noise so 59.999 renders as ,999 and not ,998.
const msEpsilon = 1e-6

// FormatTimestamp renders seconds as an SRT timestamp, HH:MM:SS,mmm.
// Hours widen past two digits when needed.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	whole := math.Floor(seconds)
	ms := int((seconds-whole)*1000 + msEpsilon)
	if ms > 999 {
		ms = 999
	}
	total := int64(whole)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// SRT renders segments as numbered SubRip blocks.
func SRT(segments []Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", FormatTimestamp(seg.Start), FormatTimestamp(seg.End))
		b.WriteString(strings.TrimSpace(seg.Text))
		b.WriteString("\n\n")
	}
	return b.String()
}

// PlainText renders one trimmed line per segment.
func PlainText(segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(strings.TrimSpace(seg.Text))
		b.WriteString("\n")
	}
	return b.String()
}

var (
	blockSep   = regexp.MustCompile(`\n[ \t]*\n`)
	timingLine = regexp.MustCompile(`^\s*(\d+):(\d{1,2}):(\d{1,2})[,.](\d{1,3})\s*-->\s*(\d+):(\d{1,2}):(\d{1,2})[,.](\d{1,3})`)
)

// ParseSRT reads SubRip content, typically edited by a user in the browser.
// CRLF line endings, a UTF-8 BOM, missing index lines and "." millisecond
// separators are accepted. Blocks without a valid timing line or text, or
// whose end precedes their start, are skipped. Multi-line text is kept
// joined by "\n".
func ParseSRT(content string) []Segment {
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	var out []Segment
	for _, block := range blockSep.Split(strings.TrimSpace(content), -1) {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		ti := -1
		for i, ln := range lines {
			if strings.Contains(ln, "-->") {
				ti = i
				break
			}
		}
		// The timing line is the first or, after an index, the second line.
		if ti < 0 || ti > 1 {
			continue
		}
		m := timingLine.FindStringSubmatch(lines[ti])
		if m == nil {
			continue
		}
		start := srtSeconds(m[1], m[2], m[3], m[4])
		end := srtSeconds(m[5], m[6], m[7], m[8])
		if end < start {
			continue
		}

		var text []string
		for _, ln := range lines[ti+1:] {
			if t := strings.TrimSpace(ln); t != "" {
				text = append(text, t)
			}
		}
		if len(text) == 0 {
			continue
		}
		out = append(out, Segment{Start: start, End: end, Text: strings.Join(text, "\n")})
	}
	return out
}

func srtSeconds(h, m, s, frac string) float64 {
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	ss, _ := strconv.Atoi(s)
	// "5" is half a second, "05" fifty milliseconds.
	for len(frac) < 3 {
		frac += "0"
	}
	ms, _ := strconv.Atoi(frac)
	return float64(hh*3600+mm*60+ss) + float64(ms)/1000
}
