package captions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00,000"},
		{1.5, "00:00:01,500"},
		{59.999, "00:00:59,999"},
		{61.25, "00:01:01,250"},
		{3661.5, "01:01:01,500"},
		{3725.042, "01:02:05,042"},
		{360000, "100:00:00,000"},
		{-3, "00:00:00,000"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTimestamp(tt.in))
		})
	}
}

func TestSRT(t *testing.T) {
	segs := []Segment{
		{Start: 0, End: 1.5, Text: " Hello "},
		{Start: 1.5, End: 3, Text: "World"},
	}
	want := "1\n00:00:00,000 --> 00:00:01,500\nHello\n\n" +
		"2\n00:00:01,500 --> 00:00:03,000\nWorld\n\n"
	assert.Equal(t, want, SRT(segs))
	assert.Equal(t, "", SRT(nil))
}

func TestPlainText(t *testing.T) {
	segs := []Segment{{Text: " Hello "}, {Text: "World\t"}}
	assert.Equal(t, "Hello\nWorld\n", PlainText(segs))
}

func TestParseSRT_RoundTrip(t *testing.T) {
	segs := []Segment{
		{Start: 0, End: 1.5, Text: "Hello"},
		{Start: 1.5, End: 3.25, Text: "שלום עולם"},
		{Start: 3725.042, End: 3726, Text: "late"},
	}
	got := ParseSRT(SRT(segs))
	require.Len(t, got, len(segs))
	for i := range segs {
		assert.InDelta(t, segs[i].Start, got[i].Start, 1e-9)
		assert.InDelta(t, segs[i].End, got[i].End, 1e-9)
		assert.Equal(t, segs[i].Text, got[i].Text)
	}
}

func TestParseSRT_Tolerant(t *testing.T) {
	content := "\ufeff1\r\n00:00:01,000 --> 00:00:02,000\r\nfirst\r\nline two\r\n\r\n" +
		"00:00:03.5 --> 00:00:04.000\r\nno index\r\n\r\n" +
		"3\r\nnot a timing line\r\ntext\r\n\r\n" +
		"4\r\n00:00:09,000 --> 00:00:08,000\r\nbackwards\r\n\r\n" +
		"5\r\n00:00:10,000 --> 00:00:11,000\r\n\r\n"

	got := ParseSRT(content)
	require.Len(t, got, 2)
	assert.Equal(t, Segment{Start: 1, End: 2, Text: "first\nline two"}, got[0])
	assert.Equal(t, Segment{Start: 3.5, End: 4, Text: "no index"}, got[1])
}

func TestParseSRT_Empty(t *testing.T) {
	assert.Empty(t, ParseSRT(""))
	assert.Empty(t, ParseSRT("   \n\n  "))
}
