package stream

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// increments decodes frames the way the chat client does, dropping bad ones
func increments(frames []string) []string {
	var out []string
	for _, f := range frames {
		text, ok, err := Decode(f)
		if err != nil || !ok {
			continue
		}
		out = append(out, text)
	}
	return out
}

func TestParser_TwoFramesOneChunk(t *testing.T) {
	var p Parser
	frames := p.Feed([]byte("data: {\"text\":\"Hel\"}\n\ndata: {\"text\":\"lo\"}\n\n"))

	assert.Equal(t, []string{"Hel", "lo"}, increments(frames))
	assert.Empty(t, p.pending)
	assert.Nil(t, p.Flush())
}

func TestParser_FrameSplitAcrossChunks(t *testing.T) {
	var p Parser

	assert.Empty(t, p.Feed([]byte("data: {\"te")))
	assert.Empty(t, p.Feed([]byte("xt\":\"Hel\"}\n")))
	got := p.Feed([]byte("\ndata: {\"text\":\"lo\"}"))
	assert.Equal(t, []string{"Hel"}, increments(got))

	got = p.Feed([]byte("\n\n"))
	assert.Equal(t, []string{"lo"}, increments(got))
}

func TestParser_EveryByteSeparately(t *testing.T) {
	body := "data: {\"text\":\"a\"}\n\ndata: {\"text\":\"b\"}\n\ndata: {\"text\":\"c\"}\n\n"

	var p Parser
	var all []string
	for i := 0; i < len(body); i++ {
		all = append(all, increments(p.Feed([]byte{body[i]}))...)
	}

	assert.Equal(t, "abc", strings.Join(all, ""))
}

func TestParser_FlushReturnsTail(t *testing.T) {
	var p Parser
	assert.Empty(t, p.Feed([]byte("data: {\"text\":\"end\"}")))

	assert.Equal(t, []string{"end"}, increments(p.Flush()))
	assert.Nil(t, p.Flush())
}

func TestParser_NotJSONDoesNotStopLaterFrames(t *testing.T) {
	var p Parser
	frames := p.Feed([]byte("data: not-json\n\ndata: {\"text\":\"ok\"}\n\n"))
	require.Len(t, frames, 2)

	_, ok, err := Decode(frames[0])
	assert.False(t, ok)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "data: not-json", perr.Frame)

	assert.Equal(t, []string{"ok"}, increments(frames))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		text    string
		ok      bool
		wantErr bool
	}{
		{name: "text", frame: `data: {"text":"hi"}`, text: "hi", ok: true},
		{name: "extra fields", frame: `data: {"text":"hi","done":false}`, text: "hi", ok: true},
		{name: "missing text", frame: `data: {"done":true}`},
		{name: "empty text", frame: `data: {"text":""}`},
		{name: "null payload", frame: `data: null`},
		{name: "no prefix", frame: `event: ping`},
		{name: "prefix without space", frame: `data:{"text":"hi"}`},
		{name: "empty frame", frame: ``},
		{name: "not json", frame: `data: not-json`, wantErr: true},
		{name: "wrong type", frame: `data: {"text":42}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, ok, err := Decode(tt.frame)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.text, text)
		})
	}
}

func TestScanner_ReplayDoesNotReprocess(t *testing.T) {
	var s Scanner
	buf := []byte("data: {\"text\":\"Hel\"}\n\n")

	first := s.Scan(buf)
	assert.Equal(t, []string{"Hel"}, increments(first))
	assert.Equal(t, len(buf), s.Cursor())

	assert.Empty(t, s.Scan(buf), "same cumulative buffer must yield nothing")
	assert.Equal(t, len(buf), s.Cursor())

	buf = append(buf, []byte("data: {\"text\":\"lo\"}\n\n")...)
	second := s.Scan(buf)
	assert.Equal(t, []string{"lo"}, increments(second))

	assert.Empty(t, s.Scan(buf[:5]), "shorter buffer is no progress")
	assert.Equal(t, len(buf), s.Cursor())
}

func TestScanner_DelimiterSplitAtChunkBoundary(t *testing.T) {
	var s Scanner
	buf := []byte("data: {\"text\":\"Hel\"}\n")
	assert.Empty(t, s.Scan(buf))

	buf = append(buf, []byte("\ndata: {\"text\":\"lo\"}\n\n")...)
	got := increments(s.Scan(buf))

	assert.Equal(t, []string{"Hel", "lo"}, got)
}
