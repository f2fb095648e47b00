// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func feedAll(p *Parser, chunks ...string) []Event {
	var events []Event
	for _, c := range chunks {
		events = append(events, p.Feed([]byte(c))...)
	}
	return events
}

func dataOf(events []Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Data
	}
	return out
}

func TestParser_Events(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []Event
	}{
		{
			name:   "single event",
			chunks: []string{"data: hello\n\n"},
			want:   []Event{{Type: "message", Data: "hello"}},
		},
		{
			name:   "no space after colon",
			chunks: []string{"data:hello\n\n"},
			want:   []Event{{Type: "message", Data: "hello"}},
		},
		{
			name:   "only one leading space stripped",
			chunks: []string{"data:  indented\n\n"},
			want:   []Event{{Type: "message", Data: " indented"}},
		},
		{
			name:   "multi-line data joined",
			chunks: []string{"data: first\ndata: second\n\n"},
			want:   []Event{{Type: "message", Data: "first\nsecond"}},
		},
		{
			name:   "event name and id",
			chunks: []string{"event: log\nid: 7\ndata: x\n\n"},
			want:   []Event{{ID: "7", Type: "log", Data: "x"}},
		},
		{
			name:   "id carries forward",
			chunks: []string{"id: 1\ndata: a\n\ndata: b\n\n"},
			want:   []Event{{ID: "1", Type: "message", Data: "a"}, {ID: "1", Type: "message", Data: "b"}},
		},
		{
			name:   "comments ignored",
			chunks: []string{": keep-alive\n\ndata: x\n\n"},
			want:   []Event{{Type: "message", Data: "x"}},
		},
		{
			name:   "blank line without data dispatches nothing",
			chunks: []string{"event: ping\n\n\n"},
			want:   nil,
		},
		{
			name:   "empty data field dispatches empty payload",
			chunks: []string{"data:\n\n"},
			want:   []Event{{Type: "message", Data: ""}},
		},
		{
			name:   "crlf terminators",
			chunks: []string{"data: a\r\n\r\ndata: b\r\n\r\n"},
			want:   []Event{{Type: "message", Data: "a"}, {Type: "message", Data: "b"}},
		},
		{
			name:   "cr terminators",
			chunks: []string{"data: a\r\rdata: b\r\r"},
			want:   []Event{{Type: "message", Data: "a"}, {Type: "message", Data: "b"}},
		},
		{
			name:   "cr and lf split across chunks",
			chunks: []string{"data: a\r", "\n\r", "\n"},
			want:   []Event{{Type: "message", Data: "a"}},
		},
		{
			name:   "event split mid-field",
			chunks: []string{"da", "ta: hel", "lo\n", "\n"},
			want:   []Event{{Type: "message", Data: "hello"}},
		},
		{
			name:   "unterminated event is held back",
			chunks: []string{"data: done\n\ndata: partial\n"},
			want:   []Event{{Type: "message", Data: "done"}},
		},
		{
			name:   "leading byte order mark",
			chunks: []string{"\xEF\xBB", "\xBFdata: x\n\n"},
			want:   []Event{{Type: "message", Data: "x"}},
		},
		{
			name:   "field without colon",
			chunks: []string{"data\n\n"},
			want:   []Event{{Type: "message", Data: ""}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Parser
			assert.Equal(t, tt.want, feedAll(&p, tt.chunks...))
		})
	}
}

// Every split point of the input must yield the same events as a single
// Feed: events are not aligned to read boundaries.
func TestParser_ArbitrarySplits(t *testing.T) {
	input := "data: one\r\n\r\n: c\nevent: log\ndata: two\ndata: lines\n\ndata: __COMPLETE__\r\r"

	var whole Parser
	want := whole.Feed([]byte(input))
	assert.Equal(t, []string{"one", "two\nlines", "__COMPLETE__"}, dataOf(want))

	for i := 0; i <= len(input); i++ {
		for j := i; j <= len(input); j++ {
			var p Parser
			got := feedAll(&p, input[:i], input[i:j], input[j:])
			if !assert.Equal(t, want, got, "split at %d,%d", i, j) {
				return
			}
		}
	}
}

func TestParser_ByteAtATime(t *testing.T) {
	input := "data: a\n\ndata: b\r\n\r\n"
	var p Parser
	var got []Event
	for i := 0; i < len(input); i++ {
		got = append(got, p.Feed([]byte{input[i]})...)
	}
	assert.Equal(t, []string{"a", "b"}, dataOf(got))
}

func TestParser_Reset(t *testing.T) {
	var p Parser
	p.Feed([]byte("id: 9\ndata: partial"))
	p.Reset()

	got := p.Feed([]byte("data: fresh\n\n"))
	assert.Equal(t, []Event{{Type: "message", Data: "fresh"}}, got)
}
