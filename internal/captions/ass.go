package captions

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrNoCues is returned by Overlay when there is nothing to draw.
var ErrNoCues = errors.New("captions: no cues to render")

// Overlay renders segments as an ASS script sized to a width x height output
// using one Default style.
func Overlay(segments []Segment, style Resolved, width, height int) (string, error) {
	if len(segments) == 0 {
		return "", ErrNoCues
	}

	var b strings.Builder
	b.WriteString(assHeader(style, width, height))
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, seg := range segments {
		b.WriteString("Dialogue: 0,")
		b.WriteString(assTime(seconds(seg.Start)))
		b.WriteString(",")
		b.WriteString(assTime(seconds(seg.End)))
		b.WriteString(",Default,,0,0,0,,")
		b.WriteString(assText(seg.Text))
		b.WriteString("\n")
	}
	return b.String(), nil
}

func assHeader(style Resolved, width, height int) string {
	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&b, "PlayResX: %d\n", width)
	fmt.Fprintf(&b, "PlayResY: %d\n", height)
	b.WriteString("WrapStyle: 0\n")
	b.WriteString("\n[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&b, "Style: Default,Arial,%d,&H00%s,&H000000FF,&H00%s,&H00000000,0,0,0,0,100,100,0,0,1,%d,0,2,10,10,%d,1\n",
		style.FontSize, style.FontColor, style.BorderColor, style.BorderSize, style.MarginV(height))
	return b.String()
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s*1000)) * time.Millisecond
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", hs, ms, s, cs)
}

// assText neutralizes override blocks and turns line breaks into \N.
func assText(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, ln := range lines {
		ln = strings.ReplaceAll(ln, "{", "(")
		ln = strings.ReplaceAll(ln, "}", ")")
		lines[i] = strings.TrimSpace(ln)
	}
	return strings.Join(lines, `\N`)
}
