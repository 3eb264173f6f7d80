// Package conn implements the per-socket state machine wiring a read
// buffer to the parser, the parser to the handler, and the handler's
// eventual response back to the socket: the Connection type an
// EventLoop drives. Grounded on the teacher's internal/server/http
// request/response loop, reshaped from its blocking read-parse-write
// cycle into the non-blocking onReadable/onWritable/onTimeout
// callbacks a reactor needs, plus the pipeline FIFO and cross-thread
// completion handoff a synchronous server never had to deal with.
package conn

import (
	"errors"
	"io"
	"sync/atomic"

	loopderr "github.com/loopd-dev/loopd/errors"
	"github.com/loopd-dev/loopd/http"
	"github.com/loopd-dev/loopd/http1"
	"github.com/loopd-dev/loopd/internal/strutil"
	"github.com/loopd-dev/loopd/internal/timer"
	"github.com/loopd-dev/loopd/log"
	"github.com/loopd-dev/loopd/options"
	"github.com/loopd-dev/loopd/queue"
	"github.com/loopd-dev/loopd/scheduler"
	"github.com/loopd-dev/loopd/tokenizer"
	"golang.org/x/sys/unix"
)

// errAgain is the "no data/room available right now" signal a
// non-blocking Socket reports; real sockets surface it as
// unix.EAGAIN, fakes in tests can return it directly.
var errAgain = unix.EAGAIN

// Socket is the minimal I/O surface a Connection drives. Real
// connections are backed by a non-blocking fd (see epoll.Conn); tests
// drive a Connection against an in-memory fake instead.
type Socket interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	CloseWrite() error
	Close() error
}

// Selector is the subset of interest-management a Connection needs
// from its owning EventLoop's selector.
type Selector interface {
	Modify(fd int, read, write bool) error
	Deregister(fd int) error
}

// pipelineEntry is one slot of the pipeline FIFO: allocated empty when
// its request is parsed, filled when the handler's callback fires,
// drained in order once it reaches the head.
type pipelineEntry struct {
	resp      *http.Response
	keepAlive bool
	ready     bool
}

// Connection is the per-socket state machine. Owned and driven by
// exactly one EventLoop thread for its entire lifetime; the only
// cross-thread entry point is the closure posted by a completion
// callback, which is processed by that same owning thread after being
// drained from the Queue.
type Connection struct {
	ID     string
	Fd     int
	sock   Socket
	sel    Selector
	opts   *options.Options
	logger log.Logger

	sched   *scheduler.Scheduler
	queue   *queue.Queue
	wake    func() error
	handler http.Handler
	onClose func(*Connection)

	tok    *tokenizer.Tokenizer
	parser *http1.Parser

	pipeline []*pipelineEntry
	base     int

	writeBuf    []byte
	writeCursor int

	halfClosed bool
	readPaused bool
	writeArmed bool
	closed     bool

	timeout scheduler.Handle
}

// Config bundles the collaborators a new Connection needs, to keep
// the constructor's argument list from sprawling.
type Config struct {
	ID        string
	Fd        int
	Socket    Socket
	Selector  Selector
	Options   *options.Options
	Logger    log.Logger
	Scheduler *scheduler.Scheduler
	Queue     *queue.Queue
	Wake      func() error
	Handler   http.Handler
	OnClose   func(*Connection)
}

// New constructs a Connection ready to be registered for read
// interest and given its first idle-timeout task.
func New(cfg Config) *Connection {
	c := &Connection{
		ID:      cfg.ID,
		Fd:      cfg.Fd,
		sock:    cfg.Socket,
		sel:     cfg.Selector,
		opts:    cfg.Options,
		logger:  cfg.Logger,
		sched:   cfg.Scheduler,
		queue:   cfg.Queue,
		wake:    cfg.Wake,
		handler: cfg.Handler,
		onClose: cfg.OnClose,
		tok:     tokenizer.New(cfg.Options.ReadBufferSize, cfg.Options.MaxRequestSize),
		parser:  http1.New(cfg.Options),
	}
	c.armTimeout()

	return c
}

func (c *Connection) log(name string, attrs ...log.Attr) {
	if c.logger.Enabled(name) {
		c.logger.Log(name, append([]log.Attr{{Key: "conn", Value: c.ID}}, attrs...)...)
	}
}

// OnReadable is invoked by the EventLoop when the socket has data (or
// EOF) pending.
func (c *Connection) OnReadable() {
	if c.closed {
		return
	}

	buf := make([]byte, c.opts.ReadBufferSize)

	for {
		n, err := c.sock.Read(buf)
		if n > 0 {
			if appendErr := c.tok.Append(buf[:n]); appendErr != nil {
				c.overflow()
				return
			}
		}

		if err != nil {
			if errors.Is(err, errAgain) {
				break
			}

			if errors.Is(err, io.EOF) {
				if len(c.pipeline) == 0 {
					c.log("connection_closed", log.Attr{Key: "reason", Value: "eof"})
					c.close()
				} else {
					c.halfClosed = true
				}
				return
			}

			c.log("io_error", log.Attr{Key: "err", Value: err.Error()})
			c.close()
			return
		}

		if n < len(buf) {
			break
		}
	}

	c.drainParser()
}

// drainParser runs the parser over whatever bytes are buffered,
// dispatching every complete Request to the handler, until the
// pipeline depth cap is hit or the buffered bytes run out.
func (c *Connection) drainParser() {
	for {
		if len(c.pipeline) >= c.opts.PipelineDepth {
			c.pauseRead()
			return
		}

		req, err := c.parser.Parse(c.tok)

		if c.parser.TakeContinue() {
			c.writeBuf = append(c.writeBuf, "HTTP/1.1 100 Continue\r\n\r\n"...)
			c.armWrite()
		}

		if err != nil {
			c.failRequest(err)
			return
		}

		if req == nil {
			return
		}

		// req holds copies of everything it references, so the bytes
		// behind it are released here; MaxRequestSize then bounds each
		// request rather than the connection's whole lifetime.
		c.tok.Compact()
		c.armTimeout()

		entry := &pipelineEntry{keepAlive: req.KeepAlive}
		c.pipeline = append(c.pipeline, entry)

		// slot is the entry's absolute position in the FIFO: stable for
		// the entry's whole lifetime, unlike its index into c.pipeline,
		// which shifts every time drainPipeline removes entries from
		// the front. onCompletion reverses the offset with c.base.
		slot := c.base + len(c.pipeline) - 1

		c.log("request_parsed", log.Attr{Key: "method", Value: req.Method.String()}, log.Attr{Key: "uri", Value: req.URI})
		c.dispatch(req, slot)
	}
}

// dispatch invokes the handler for one pipeline slot, recovering from
// a panic the same way a crashed handler would be treated by any
// other reactor thread: the connection gets a 500 and closes rather
// than taking the owning EventLoop down with it. The recovered path
// calls the same callback the handler received, so a handler that
// panics after already having called it hits the ordinary
// duplicate-callback guard instead of corrupting the pipeline.
func (c *Connection) dispatch(req *http.Request, slot int) {
	callback := c.completionCallback(slot)

	defer func() {
		if r := recover(); r != nil {
			c.log("handler_panic", log.Attr{Key: "err", Value: loopderr.ErrHandlerPanic.Error()}, log.Attr{Key: "recovered", Value: r})
			callback(http.NewResponse(500, "Internal Server Error").Header("Connection", "close"))
		}
	}()

	c.handler.Handle(req, callback)
}

// completionCallback returns the callback passed to the handler for
// the pipeline entry at absolute FIFO position slot (see onCompletion).
// Safe to call from any thread;
// every invocation after the first is a documented no-op.
func (c *Connection) completionCallback(slot int) func(*http.Response) {
	var invoked atomic.Bool

	return func(resp *http.Response) {
		if !invoked.CompareAndSwap(false, true) {
			c.log("duplicate_callback", log.Attr{Key: "slot", Value: slot})
			return
		}

		c.queue.Push(func() { c.onCompletion(slot, resp) })

		if err := c.wake(); err != nil {
			c.log("io_error", log.Attr{Key: "err", Value: err.Error()})
		}
	}
}

// onCompletion runs on the owning EventLoop thread, once per request,
// after being drained from the cross-thread queue. slot is the
// request's absolute FIFO position, assigned once at parse time and
// never renumbered; c.base tracks how many entries have since been
// drained off the front, so slot-c.base is always the entry's current
// index into c.pipeline. A slot below c.base belongs to an entry
// that's already been drained and serialized — this can't happen for
// a live request (duplicate callbacks are filtered upstream), but is
// checked defensively rather than trusted.
func (c *Connection) onCompletion(slot int, resp *http.Response) {
	if c.closed {
		return
	}

	i := slot - c.base
	if i < 0 || i >= len(c.pipeline) {
		return
	}

	if resp == nil {
		resp = http.NewResponse(500, "Internal Server Error")
	}

	entry := c.pipeline[i]
	entry.resp = resp
	entry.ready = true

	c.drainPipeline()
	c.armTimeout()
}

// drainPipeline serializes every contiguous ready entry at the head
// of the FIFO into the write buffer, in arrival order, regardless of
// which slot finished first.
func (c *Connection) drainPipeline() {
	for len(c.pipeline) > 0 && c.pipeline[0].ready {
		entry := c.pipeline[0]
		c.writeBuf = http1.Serialize(c.writeBuf, entry.resp, entry.keepAlive)
		c.log("response_written", log.Attr{Key: "code", Value: entry.resp.Code})

		if !entry.keepAlive || strutil.CmpFold(entry.resp.Headers.Value("Connection"), "close") {
			c.halfClosed = true
		}

		c.pipeline = c.pipeline[1:]
		c.base++
	}

	if len(c.writeBuf) > c.writeCursor {
		c.armWrite()
	}

	if c.readPaused && len(c.pipeline) < c.opts.PipelineDepth {
		c.rearmRead()
	}
}

// OnWritable is invoked by the EventLoop when the socket can accept
// more bytes.
func (c *Connection) OnWritable() {
	if c.closed {
		return
	}

	for c.writeCursor < len(c.writeBuf) {
		n, err := c.sock.Write(c.writeBuf[c.writeCursor:])
		if n > 0 {
			c.writeCursor += n
		}

		if err != nil {
			if errors.Is(err, errAgain) {
				return
			}

			c.log("io_error", log.Attr{Key: "err", Value: err.Error()})
			c.close()
			return
		}
	}

	c.writeBuf = c.writeBuf[:0]
	c.writeCursor = 0

	if c.halfClosed {
		_ = c.sock.CloseWrite()
		c.close()
		return
	}

	c.disarmWrite()
}

// OnTimeout is invoked by the scheduler once the connection's idle
// deadline elapses.
func (c *Connection) OnTimeout() {
	if c.closed {
		return
	}

	c.log("timeout", log.Attr{Key: "err", Value: loopderr.ErrIdleTimeout.Error()}, log.Attr{Key: "pending", Value: len(c.pipeline)})
	c.close()
}

// OnError is invoked by the EventLoop when the selector reports an
// error or hangup condition on the socket.
func (c *Connection) OnError() {
	if c.closed {
		return
	}

	c.log("io_error", log.Attr{Key: "err", Value: "socket error or hangup"})
	c.close()
}

// OnShutdown is invoked by the EventLoop when the server is stopping.
// Bytes already serialized into the write buffer are written
// best-effort, until the socket would block or fails; responses still
// waiting on their handler are abandoned.
func (c *Connection) OnShutdown() {
	if c.closed {
		return
	}

	for c.writeCursor < len(c.writeBuf) {
		n, err := c.sock.Write(c.writeBuf[c.writeCursor:])
		if n > 0 {
			c.writeCursor += n
		}

		if err != nil {
			break
		}
	}

	c.log("connection_closed", log.Attr{Key: "reason", Value: loopderr.ErrShutdown.Error()})
	c.close()
}

// overflow closes the connection with no bytes written: a request
// that exceeds Options.MaxRequestSize gets no error response, only a
// log event and an immediate close.
func (c *Connection) overflow() {
	c.log("overflow", log.Attr{Key: "err", Value: loopderr.ErrTooLarge.Error()})
	c.close()
}

// failRequest turns a fatal parse error into a best-effort error
// response, then marks the connection for close once it flushes.
func (c *Connection) failRequest(err error) {
	c.log("parse_error", log.Attr{Key: "err", Value: err.Error()})

	resp := errorResponse(err)
	c.writeBuf = http1.Serialize(c.writeBuf, resp, false)
	c.halfClosed = true

	if len(c.writeBuf) > c.writeCursor {
		c.armWrite()
	}

	c.pauseRead()
}

func (c *Connection) pauseRead() {
	if c.readPaused {
		return
	}

	c.readPaused = true
	_ = c.sel.Modify(c.Fd, false, c.writeArmed)
}

func (c *Connection) rearmRead() {
	if !c.readPaused {
		return
	}

	c.readPaused = false
	_ = c.sel.Modify(c.Fd, true, c.writeArmed)
}

func (c *Connection) armWrite() {
	if c.writeArmed {
		return
	}

	c.writeArmed = true
	_ = c.sel.Modify(c.Fd, !c.readPaused, true)
}

func (c *Connection) disarmWrite() {
	if !c.writeArmed {
		return
	}

	c.writeArmed = false
	_ = c.sel.Modify(c.Fd, !c.readPaused, false)
}

func (c *Connection) armTimeout() {
	c.timeout.Cancel()
	c.timeout = c.sched.Schedule(timer.NowMillis()+c.opts.RequestTimeout.Milliseconds(), c.OnTimeout)
}

// close tears the connection down exactly once: cancels its pending
// timeout, deregisters it from the selector, closes the socket and
// notifies the owning EventLoop so it stops tracking it. Any
// completion callback that arrives afterwards finds c.closed set and
// discards its result in onCompletion.
func (c *Connection) close() {
	if c.closed {
		return
	}

	c.closed = true
	c.timeout.Cancel()
	_ = c.sel.Deregister(c.Fd)
	_ = c.sock.Close()

	if c.onClose != nil {
		c.onClose(c)
	}
}

// Closed reports whether the connection has already torn itself down.
func (c *Connection) Closed() bool { return c.closed }
