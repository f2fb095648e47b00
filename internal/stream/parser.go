// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stream

import (
	"bytes"
	"strings"
)

// Event is one dispatched server-sent event.
type Event struct {
	// ID is the last event id seen on the stream, carried forward across
	// events as the event stream format requires.
	ID string

	// Type is the event name; "message" when the server sent none.
	Type string

	// Data is the payload; multiple data lines are joined with "\n".
	Data string
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parser incrementally decodes a text/event-stream body. Chunks may split
// lines, line terminators and events at arbitrary byte offsets; partial
// input is buffered until a later Feed completes it.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	line      []byte
	data      []string
	hasData   bool
	eventType string
	lastID    string
	skipLF    bool
	started   bool
}

// Feed consumes the next chunk and returns every event it completed.
func (p *Parser) Feed(chunk []byte) []Event {
	if !p.started {
		if len(p.line)+len(chunk) < len(utf8BOM) && bytes.HasPrefix(utf8BOM, append(p.line, chunk...)) {
			p.line = append(p.line, chunk...)
			return nil
		}
		p.started = true
		if len(p.line) > 0 {
			chunk = append(p.line, chunk...)
			p.line = nil
		}
		chunk = bytes.TrimPrefix(chunk, utf8BOM)
	}

	var events []Event
	for len(chunk) > 0 {
		if p.skipLF {
			p.skipLF = false
			if chunk[0] == '\n' {
				chunk = chunk[1:]
				continue
			}
		}

		i := bytes.IndexAny(chunk, "\r\n")
		if i < 0 {
			p.line = append(p.line, chunk...)
			break
		}

		line := chunk[:i]
		if len(p.line) > 0 {
			p.line = append(p.line, line...)
			line = p.line
		}

		if chunk[i] == '\r' {
			switch {
			case i+1 < len(chunk) && chunk[i+1] == '\n':
				i++
			case i+1 == len(chunk):
				// The matching '\n' may arrive with the next chunk.
				p.skipLF = true
			}
		}
		chunk = chunk[i+1:]

		if ev, ok := p.processLine(line); ok {
			events = append(events, ev)
		}
		p.line = p.line[:0]
	}
	return events
}

// Reset discards buffered input and the last event id.
func (p *Parser) Reset() {
	*p = Parser{}
}

func (p *Parser) processLine(line []byte) (Event, bool) {
	if len(line) == 0 {
		return p.dispatch()
	}
	if line[0] == ':' {
		return Event{}, false
	}

	field, value := string(line), ""
	if i := bytes.IndexByte(line, ':'); i >= 0 {
		field = string(line[:i])
		value = strings.TrimPrefix(string(line[i+1:]), " ")
	}

	switch field {
	case "data":
		p.data = append(p.data, value)
		p.hasData = true
	case "event":
		p.eventType = value
	case "id":
		if !strings.ContainsRune(value, 0) {
			p.lastID = value
		}
	}
	// "retry" and unknown fields are ignored: the consumer never reconnects.
	return Event{}, false
}

func (p *Parser) dispatch() (Event, bool) {
	defer func() {
		p.data = p.data[:0]
		p.hasData = false
		p.eventType = ""
	}()
	if !p.hasData {
		return Event{}, false
	}
	ev := Event{
		ID:   p.lastID,
		Type: p.eventType,
		Data: strings.Join(p.data, "\n"),
	}
	if ev.Type == "" {
		ev.Type = "message"
	}
	return ev, true
}
