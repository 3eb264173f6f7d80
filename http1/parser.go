// Package http1 implements the incremental HTTP/1.x request parser and
// the response serializer it mirrors. Both are driven by a
// tokenizer.Tokenizer rather than a raw byte slice: since the tokenizer
// already remembers where a previous call left off, the parser can
// resume a state across Parse calls with a plain switch instead of the
// character-by-character goto machinery a lower-level buffer would
// need.
package http1

import (
	"bytes"
	"strconv"

	loopderr "github.com/loopd-dev/loopd/errors"
	"github.com/loopd-dev/loopd/http"
	"github.com/loopd-dev/loopd/http/method"
	"github.com/loopd-dev/loopd/http/version"
	"github.com/loopd-dev/loopd/internal/bconv"
	"github.com/loopd-dev/loopd/internal/hexconv"
	"github.com/loopd-dev/loopd/internal/strutil"
	"github.com/loopd-dev/loopd/kv"
	"github.com/loopd-dev/loopd/options"
	"github.com/loopd-dev/loopd/tokenizer"
)

type state uint8

const (
	sRequestLine state = iota
	sHeaders
	sFixedBody
	sChunkSize
	sChunkData
	sChunkDataCRLF
	sChunkTrailers
	sDone
)

var crlf = []byte("\r\n")

// Parser is a resumable HTTP/1.x request parser. A single instance is
// reused across every pipelined request on a Connection; Parse resets
// its own fields to start over once it yields a Request.
type Parser struct {
	opts *options.Options

	state state

	method  method.Method
	uri     string
	version version.Version
	headers *kv.Storage

	headerCount         int
	contentLength       int
	sawContentLength    bool
	sawTransferEncoding bool
	conflictingFraming  bool
	chunked             bool
	connClose           bool
	connKeepAlive       bool

	// ExpectContinue is set once the current request's headers carried
	// Expect: 100-continue, and stays set until the Parser resets for
	// the next request. The Connection learns when to queue the interim
	// response through TakeContinue, not through this field.
	ExpectContinue bool

	// continuePending is set the instant body framing is decided for a
	// request carrying Expect: 100-continue, and cleared by the one
	// TakeContinue call that queues the interim response ahead of the
	// body.
	continuePending bool

	body      []byte
	remaining int
}

// New returns a Parser bound to opts for its resource limits.
func New(opts *options.Options) *Parser {
	p := &Parser{opts: opts}
	p.reset()
	return p
}

func (p *Parser) reset() {
	p.state = sRequestLine
	p.method = method.Unknown
	p.uri = ""
	p.version = version.Unknown
	p.headers = kv.NewPrealloc(8)
	p.headerCount = 0
	p.contentLength = 0
	p.sawContentLength = false
	p.sawTransferEncoding = false
	p.conflictingFraming = false
	p.chunked = false
	p.connClose = false
	p.connKeepAlive = false
	p.ExpectContinue = false
	p.continuePending = false
	p.body = nil
	p.remaining = 0
}

func (p *Parser) lineBudget() int {
	if p.opts.MaxHeaderLineSize > 0 {
		return p.opts.MaxHeaderLineSize
	}

	return p.opts.MaxRequestSize
}

// Parse drives the state machine as far as the bytes already appended
// to tok allow. It returns a non-nil Request once one has been fully
// parsed, in which case the Parser is reset and ready for the next
// pipelined request. A nil Request with a nil error means tok doesn't
// yet hold enough bytes; the caller should append more and call Parse
// again. Errors are always fatal to the connection.
func (p *Parser) Parse(tok *tokenizer.Tokenizer) (*http.Request, error) {
	for {
		switch p.state {
		case sRequestLine:
			done, err := p.parseRequestLine(tok)
			if err != nil {
				return nil, err
			}
			if !done {
				return nil, nil
			}

		case sHeaders:
			done, err := p.parseHeaderLine(tok)
			if err != nil {
				return nil, err
			}
			if !done {
				return nil, nil
			}

		case sFixedBody:
			done, err := p.consumeFixedBody(tok)
			if err != nil {
				return nil, err
			}
			if !done {
				return nil, nil
			}

			return p.finish(), nil

		case sChunkSize:
			done, err := p.parseChunkSize(tok)
			if err != nil {
				return nil, err
			}
			if !done {
				return nil, nil
			}

		case sChunkData:
			done, err := p.consumeChunkData(tok)
			if err != nil {
				return nil, err
			}
			if !done {
				return nil, nil
			}

		case sChunkDataCRLF:
			done, err := p.consumeChunkDataCRLF(tok)
			if err != nil {
				return nil, err
			}
			if !done {
				return nil, nil
			}

		case sChunkTrailers:
			done, err := p.parseHeaderLine(tok)
			if err != nil {
				return nil, err
			}
			if !done {
				return nil, nil
			}

		case sDone:
			return p.finish(), nil
		}
	}
}

func (p *Parser) parseRequestLine(tok *tokenizer.Tokenizer) (bool, error) {
	line, err := tok.ConsumeUntil(crlf, p.lineBudget())
	if err == tokenizer.ErrIncomplete {
		return false, nil
	}
	if err == tokenizer.ErrOverflow {
		return false, loopderr.ErrURITooLong
	}
	if err != nil {
		return false, err
	}

	methodTok, rest, ok := cutSpace(line)
	if !ok {
		return false, loopderr.ErrBadRequest
	}

	uriTok, versionTok, ok := cutSpace(rest)
	if !ok {
		return false, loopderr.ErrBadRequest
	}

	if len(methodTok) == 0 || len(uriTok) == 0 || len(versionTok) == 0 {
		return false, loopderr.ErrBadRequest
	}

	if containsControlChar(methodTok) || containsControlChar(uriTok) {
		return false, loopderr.ErrBadRequest
	}

	m := method.Parse(bconv.B2S(methodTok))
	if m == method.Unknown {
		return false, loopderr.ErrMethodNotImplemented
	}

	v := version.FromBytes(versionTok)
	if v == version.Unknown {
		return false, loopderr.ErrUnsupportedProtocol
	}

	p.method = m
	p.uri = string(uriTok)
	p.version = v
	p.state = sHeaders

	return true, nil
}

// cutSpace splits on the first ' ' byte, reporting false if none was
// found.
func cutSpace(b []byte) (before, after []byte, found bool) {
	i := bytes.IndexByte(b, ' ')
	if i == -1 {
		return b, nil, false
	}

	return b[:i], b[i+1:], true
}

func containsControlChar(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c == 0x7f {
			return true
		}
	}

	return false
}

// parseHeaderLine consumes one header-section line, dispatching the
// body-framing decision once it sees the terminating empty line. It
// reports true whenever a line was consumed, so Parse keeps looping
// over lines already buffered. It doubles as the trailer-section line
// reader when p.state is sChunkTrailers: trailers are appended to the
// same header list and the terminating empty line transitions to sDone
// so Parse yields the request on the next loop iteration.
func (p *Parser) parseHeaderLine(tok *tokenizer.Tokenizer) (bool, error) {
	line, err := tok.ConsumeUntil(crlf, p.lineBudget())
	if err == tokenizer.ErrIncomplete {
		return false, nil
	}
	if err == tokenizer.ErrOverflow {
		return false, loopderr.ErrHeaderLineTooLong
	}
	if err != nil {
		return false, err
	}

	if len(line) == 0 {
		if p.state == sChunkTrailers {
			p.state = sDone
			return true, nil
		}

		return true, p.decideBodyFraming()
	}

	colon := bytes.IndexByte(line, ':')
	if colon == -1 {
		return false, loopderr.ErrBadRequest
	}

	key := string(line[:colon])
	value := strutil.TrimOWS(string(line[colon+1:]))

	if p.headerCount++; p.headerCount > p.opts.MaxHeaderCount {
		return false, loopderr.ErrTooManyHeaders
	}

	p.headers.Add(key, value)
	p.observeHeader(key, value)

	return true, nil
}

func (p *Parser) observeHeader(key, value string) {
	switch {
	case strutil.CmpFold(key, "Content-Length"):
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			p.conflictingFraming = true
			return
		}

		if p.sawContentLength && n != p.contentLength {
			p.conflictingFraming = true
			return
		}

		p.contentLength = n
		p.sawContentLength = true
	case strutil.CmpFold(key, "Transfer-Encoding"):
		p.sawTransferEncoding = true
		p.chunked = strutil.CmpFold(strutil.TrimOWS(value), "chunked")
	case strutil.CmpFold(key, "Connection"):
		switch {
		case strutil.CmpFold(value, "close"):
			p.connClose = true
		case strutil.CmpFold(value, "keep-alive"):
			p.connKeepAlive = true
		}
	case strutil.CmpFold(key, "Expect"):
		if strutil.CmpFold(value, "100-continue") {
			p.ExpectContinue = true
		}
	}
}

func (p *Parser) decideBodyFraming() error {
	if p.conflictingFraming || (p.sawContentLength && p.sawTransferEncoding) {
		return loopderr.ErrConflictingFraming
	}

	switch {
	case p.chunked:
		p.state = sChunkSize
		p.continuePending = p.ExpectContinue
	case p.sawContentLength && p.contentLength > 0:
		p.remaining = p.contentLength
		p.state = sFixedBody
		p.continuePending = p.ExpectContinue
	default:
		p.body = nil
		p.state = sDone
	}

	return nil
}

// TakeContinue reports whether the request just past its headers
// carried Expect: 100-continue and is about to start consuming a
// body, clearing the flag so it fires at most once per request.
func (p *Parser) TakeContinue() bool {
	if !p.continuePending {
		return false
	}

	p.continuePending = false

	return true
}

func (p *Parser) consumeFixedBody(tok *tokenizer.Tokenizer) (bool, error) {
	if tok.Len() < p.remaining {
		return false, nil
	}

	p.body = append([]byte(nil), tok.Consume(p.remaining)...)
	p.state = sRequestLine

	return true, nil
}

func (p *Parser) parseChunkSize(tok *tokenizer.Tokenizer) (bool, error) {
	line, err := tok.ConsumeUntil(crlf, p.lineBudget())
	if err == tokenizer.ErrIncomplete {
		return false, nil
	}
	if err == tokenizer.ErrOverflow {
		return false, loopderr.ErrBadRequest
	}
	if err != nil {
		return false, err
	}

	// chunk extensions, if any, follow a ';' and are ignored.
	if i := bytes.IndexByte(line, ';'); i != -1 {
		line = line[:i]
	}

	if len(line) == 0 {
		return false, loopderr.ErrBadRequest
	}

	size := 0
	for _, c := range line {
		if !hexconv.Valid(c) {
			return false, loopderr.ErrBadRequest
		}

		size = size*16 + int(hexconv.Halfbyte[c])
	}

	if size == 0 {
		p.state = sChunkTrailers
		return true, nil
	}

	p.remaining = size
	p.state = sChunkData

	return true, nil
}

func (p *Parser) consumeChunkData(tok *tokenizer.Tokenizer) (bool, error) {
	if tok.Len() < p.remaining {
		return false, nil
	}

	p.body = append(p.body, tok.Consume(p.remaining)...)
	p.state = sChunkDataCRLF

	return true, nil
}

func (p *Parser) consumeChunkDataCRLF(tok *tokenizer.Tokenizer) (bool, error) {
	if tok.Len() < 2 {
		return false, nil
	}

	got := tok.Consume(2)
	if got[0] != '\r' || got[1] != '\n' {
		return false, loopderr.ErrBadRequest
	}

	p.state = sChunkSize

	return true, nil
}

// finish snapshots the parsed fields — including the keep-alive
// decision, per version defaults and any explicit Connection header —
// into a Request before resetting the Parser for the next pipelined
// request on this connection. The decision must be latched here: once
// reset runs, version/connClose/connKeepAlive are gone.
func (p *Parser) finish() *http.Request {
	keepAlive := p.connKeepAlive
	if p.version == version.HTTP11 {
		keepAlive = !p.connClose
	}

	req := &http.Request{
		Method:    p.method,
		URI:       p.uri,
		Version:   p.version,
		Headers:   p.headers,
		Body:      p.body,
		KeepAlive: keepAlive,
	}

	p.reset()

	return req
}
