package rpcserver

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrTransport wraps framing-level failures distinct from JSON-RPC
// protocol errors (those are reported in-band; these end the session).
var ErrTransport = errors.New("rpc transport error")

const contentLengthPrefix = "Content-Length:"

// framing identifies which wire framing a stdio session is using.
// mcp-go's stdio transport picks exactly one; this server auto-detects
// from the first line, because both editor clients and hook-style
// single-shot callers are expected to speak to the same binary.
type framing int

const (
	framingLengthPrefixed framing = iota
	framingNewlineDelimited
)

// transport reads framed JSON-RPC messages from r and writes framed
// replies to w, detecting the framing from the first line read.
type transport struct {
	reader  *bufio.Reader
	writer  io.Writer
	framing framing
	sniffed bool
}

func newTransport(r io.Reader, w io.Writer) *transport {
	return &transport{reader: bufio.NewReader(r), writer: w}
}

// sniff peeks the first line to decide framing, without consuming the
// line if it belongs to newline-delimited framing — the line itself is
// the first message body in that case.
func (t *transport) sniff() (firstLine string, err error) {
	line, err := t.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("%w: reading first line: %v", ErrTransport, err)
	}
	trimmed := strings.TrimRight(line, "\r\n")
	if strings.HasPrefix(trimmed, contentLengthPrefix) {
		t.framing = framingLengthPrefixed
		t.sniffed = true
		return trimmed, nil
	}
	t.framing = framingNewlineDelimited
	t.sniffed = true
	return trimmed, err
}

// readMessage returns the next message body, or io.EOF when the
// stream ends cleanly.
func (t *transport) readMessage() ([]byte, error) {
	if !t.sniffed {
		firstLine, err := t.sniff()
		if err != nil {
			return nil, err
		}
		if t.framing == framingNewlineDelimited {
			if firstLine == "" {
				return t.readMessage()
			}
			return []byte(firstLine), nil
		}
		return t.readLengthPrefixedBody(firstLine)
	}

	if t.framing == framingNewlineDelimited {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" {
				return nil, io.EOF
			}
			if err != io.EOF {
				return nil, fmt.Errorf("%w: %v", ErrTransport, err)
			}
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return t.readMessage()
		}
		return []byte(line), nil
	}

	headerLine, err := t.reader.ReadString('\n')
	if err != nil {
		return nil, io.EOF
	}
	return t.readLengthPrefixedBody(strings.TrimRight(headerLine, "\r\n"))
}

// readLengthPrefixedBody consumes the remaining header lines after
// firstHeaderLine (which may already be the Content-Length line) up
// to the blank line terminator, then reads exactly Content-Length
// bytes of body.
func (t *transport) readLengthPrefixedBody(firstHeaderLine string) ([]byte, error) {
	length := -1
	header := firstHeaderLine
	for {
		if header == "" {
			break
		}
		if strings.HasPrefix(header, contentLengthPrefix) {
			v := strings.TrimSpace(strings.TrimPrefix(header, contentLengthPrefix))
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid Content-Length %q", ErrTransport, v)
			}
			length = n
		}
		line, err := t.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("%w: reading headers: %v", ErrTransport, err)
		}
		header = strings.TrimRight(line, "\r\n")
	}
	if length < 0 {
		return nil, fmt.Errorf("%w: missing Content-Length header", ErrTransport)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrTransport, err)
	}
	return body, nil
}

// writeMessage frames and writes one reply in the session's detected
// framing.
func (t *transport) writeMessage(body []byte) error {
	switch t.framing {
	case framingLengthPrefixed:
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n", len(body))
		buf.Write(body)
		_, err := t.writer.Write(buf.Bytes())
		return err
	default:
		_, err := t.writer.Write(append(body, '\n'))
		return err
	}
}
