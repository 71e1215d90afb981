// Package sse decodes the text/event-stream body of a streaming chat response
// into token, done and error callbacks.
package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"agentchat/internal/logger"
	"agentchat/internal/metrics"
	"agentchat/internal/models"

	"go.uber.org/zap"
)

const (
	EventToken = "token"
	EventDone  = "done"
	EventError = "error"

	eventPrefix = "event: "
	dataPrefix  = "data: "

	readBufferSize = 4096
)

// Handler receives decoded events in stream order.
type Handler interface {
	OnToken(content string)
	OnDone(messageID, fullContent string)
	OnError(errMsg, fallbackMessage string)
}

// Funcs adapts plain functions to a Handler. Nil fields are ignored.
type Funcs struct {
	Token func(content string)
	Done  func(messageID, fullContent string)
	Error func(errMsg, fallbackMessage string)
}

func (f Funcs) OnToken(content string) {
	if f.Token != nil {
		f.Token(content)
	}
}

func (f Funcs) OnDone(messageID, fullContent string) {
	if f.Done != nil {
		f.Done(messageID, fullContent)
	}
}

func (f Funcs) OnError(errMsg, fallbackMessage string) {
	if f.Error != nil {
		f.Error(errMsg, fallbackMessage)
	}
}

// Parser is an incremental decoder. Chunks may split lines, events and
// multi-byte characters at any byte; output does not depend on where.
type Parser struct {
	handler Handler
	log     *zap.Logger

	buf       []byte
	eventType string
	data      string
	hasType   bool
	hasData   bool
	finished  bool
}

func NewParser(h Handler, log *zap.Logger) *Parser {
	return &Parser{handler: h, log: logger.OrNop(log)}
}

// Write feeds a chunk of the response body. It never fails; malformed
// events are logged and skipped.
func (p *Parser) Write(chunk []byte) (int, error) {
	if p.finished {
		return len(chunk), nil
	}
	p.buf = append(p.buf, chunk...)

	// '\n' never occurs inside a multi-byte UTF-8 sequence, so every complete
	// line is also a complete run of characters.
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			break
		}
		line := string(p.buf[:i])
		p.buf = p.buf[i+1:]
		p.handleLine(strings.TrimSuffix(line, "\r"))
		if p.finished {
			p.buf = nil
			break
		}
	}
	if len(p.buf) == 0 {
		p.buf = nil
	}
	return len(chunk), nil
}

// Close discards any partial line still buffered.
func (p *Parser) Close() {
	p.buf = nil
	p.resetEvent()
}

// Finished reports whether a terminal done or error event was dispatched.
func (p *Parser) Finished() bool {
	return p.finished
}

func (p *Parser) handleLine(line string) {
	switch {
	case strings.HasPrefix(line, eventPrefix):
		p.eventType = line[len(eventPrefix):]
		p.hasType = true
	case strings.HasPrefix(line, dataPrefix):
		p.data = line[len(dataPrefix):]
		p.hasData = true
	default:
		return
	}

	if !p.hasType || !p.hasData {
		return
	}
	eventType, data := p.eventType, p.data
	p.resetEvent()
	p.dispatch(eventType, data)
}

func (p *Parser) resetEvent() {
	p.eventType, p.data = "", ""
	p.hasType, p.hasData = false, false
}

func (p *Parser) dispatch(eventType, data string) {
	var err error
	switch eventType {
	case EventToken:
		var ev models.TokenEvent
		if err = json.Unmarshal([]byte(data), &ev); err == nil {
			p.handler.OnToken(ev.Content)
		}
	case EventDone:
		var ev models.DoneEvent
		if err = json.Unmarshal([]byte(data), &ev); err == nil {
			p.finished = true
			p.handler.OnDone(ev.MessageID, ev.FullContent)
		}
	case EventError:
		var ev models.ErrorEvent
		if err = json.Unmarshal([]byte(data), &ev); err == nil {
			p.finished = true
			p.handler.OnError(ev.Error, ev.FallbackMessage)
		}
	default:
		p.log.Debug("ignoring unknown stream event", zap.String("event", eventType))
		return
	}

	if err != nil {
		metrics.SSEMalformedTotal.Inc()
		p.log.Warn("failed to parse stream event",
			zap.String("event", eventType),
			zap.String("data", data),
			zap.Error(err),
		)
		return
	}
	metrics.SSEEventsTotal.WithLabelValues(eventType).Inc()
}

// Parse reads r until it is exhausted, a terminal event arrives, or ctx is
// done. A partial trailing line at end of input is discarded.
func Parse(ctx context.Context, r io.Reader, h Handler, log *zap.Logger) error {
	p := NewParser(h, log)
	defer p.Close()

	buf := make([]byte, readBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = p.Write(buf[:n])
			if p.Finished() {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
