package sse

import "bytes"

// Decoder turns arbitrarily framed chunks of an upstream event stream into
// events. It keeps the unterminated tail of the last chunk so a data line
// split across reads is decoded once it is complete.
type Decoder struct {
	buf      []byte
	finished bool
	onDrop   func(line []byte, err error)
}

// NewDecoder returns a decoder. onDrop, when non-nil, is told about data
// lines whose JSON payload could not be parsed.
func NewDecoder(onDrop func(line []byte, err error)) *Decoder {
	return &Decoder{onDrop: onDrop}
}

// Feed consumes one chunk and returns the events completed by it.
func (d *Decoder) Feed(chunk []byte) []Event {
	if d.finished {
		return nil
	}
	d.buf = append(d.buf, chunk...)
	var out []Event
	off := 0
	for !d.finished {
		i := bytes.IndexByte(d.buf[off:], '\n')
		if i < 0 {
			break
		}
		out = d.line(out, d.buf[off:off+i])
		off += i + 1
	}
	if d.finished {
		d.buf = nil
		return out
	}
	n := copy(d.buf, d.buf[off:])
	d.buf = d.buf[:n]
	return out
}

// Finish is called when the transport has no more bytes. It decodes a final
// unterminated line and closes the stream with Done unless a terminal event
// was already produced.
func (d *Decoder) Finish() []Event {
	if d.finished {
		return nil
	}
	var out []Event
	if len(d.buf) > 0 {
		out = d.line(out, d.buf)
		d.buf = nil
	}
	if !d.finished {
		d.finished = true
		out = append(out, Done())
	}
	return out
}

// Finished reports whether a terminal event has been produced.
func (d *Decoder) Finished() bool { return d.finished }

func (d *Decoder) line(out []Event, raw []byte) []Event {
	res := ParseUpstreamLine(raw)
	if res.Dropped != nil {
		if d.onDrop != nil {
			d.onDrop(raw, res.Dropped)
		}
		return out
	}
	if !res.Parsed {
		return out
	}
	if res.Content != "" {
		out = append(out, Content(res.Content))
	}
	if res.Stop {
		d.finished = true
		if res.ErrorMessage != "" {
			out = append(out, Failure(res.ErrorMessage))
		} else {
			out = append(out, Done())
		}
	}
	return out
}
