// Package filewriter appends newline-terminated text records to a destination
// with bounded buffering.
//
// A Writer owns its destination for its whole lifetime. Two Writers appending
// to the same path produce undefined interleaving; callers keep one Writer per
// path.
//
// Records are queued in call order and drained by a single goroutine. [Writer.Send]
// returns a channel that receives exactly one value: nil as soon as the record is
// queued while the buffer is below its high-water mark, nil once the destination
// has drained below the mark when the buffer is saturated, or the I/O error that
// stopped the writer.
package filewriter

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// DefaultHighWaterMark is the number of buffered bytes at which writes start
// waiting for the destination to drain.
const DefaultHighWaterMark = 64 << 10

// ErrClosed is returned by writes issued after Close.
var ErrClosed = errors.New("filewriter: writer is closed")

// ConstructionError is returned when the destination cannot be opened.
type ConstructionError struct {
	Path string
	Err  error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("failed to open %s for writing: %v", e.Path, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// WriteError is returned when the destination fails after construction.
//
// Once a WriteError occurred every later write on the same Writer fails with it.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write records: %v", e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Option configures a Writer.
type Option func(*Writer)

// WithHighWaterMark sets the buffered byte count at which writes wait for drain.
// Values <= 0 select DefaultHighWaterMark.
func WithHighWaterMark(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.highWaterMark = n
		}
	}
}

// Writer is a sequential line-delimited record writer.
type Writer struct {
	dst           io.Writer
	closer        io.Closer
	highWaterMark int

	mu       sync.Mutex
	wake     *sync.Cond
	pending  []byte
	buffered int // bytes accepted and not yet written, in flight included
	waiters  []chan error
	count    int
	err      error
	closing  bool
	done     chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// Create opens path for writing, creating it or truncating existing content.
func Create(path string, opts ...Option) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644) //nolint:gosec // G304: caller chooses the export path
	if err != nil {
		return nil, &ConstructionError{Path: path, Err: err}
	}
	return New(f, opts...), nil
}

// New returns a Writer draining into dst.
//
// If dst implements io.Closer, Close closes it.
func New(dst io.Writer, opts ...Option) *Writer {
	w := &Writer{
		dst:           dst,
		highWaterMark: DefaultHighWaterMark,
		done:          make(chan struct{}),
	}
	if c, ok := dst.(io.Closer); ok {
		w.closer = c
	}
	for _, opt := range opts {
		opt(w)
	}
	w.wake = sync.NewCond(&w.mu)
	go w.drain()
	return w
}

// WithFile creates the file at path, calls fn and closes the writer on every
// exit path. The first error wins.
func WithFile(path string, fn func(*Writer) error, opts ...Option) (err error) {
	w, err := Create(path, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(w)
}

// Send queues record followed by a newline.
//
// The record is queued before Send returns, so successive calls keep their
// order even when the caller does not wait on the returned channel. The
// channel is buffered and receives exactly one value.
func (w *Writer) Send(record string) <-chan error {
	res := make(chan error, 1)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		res <- w.err
		return res
	}
	if w.closing {
		res <- ErrClosed
		return res
	}
	w.pending = append(w.pending, record...)
	w.pending = append(w.pending, '\n')
	w.buffered += len(record) + 1
	w.count++
	w.wake.Signal()
	if w.buffered < w.highWaterMark {
		res <- nil
	} else {
		w.waiters = append(w.waiters, res)
	}
	return res
}

// Write queues record and waits for its completion signal.
func (w *Writer) Write(record string) error {
	return <-w.Send(record)
}

// Count returns the number of records accepted so far.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close writes everything queued, closes the destination and returns the first
// I/O error encountered. It is safe to call more than once.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closing = true
		w.wake.Signal()
		w.mu.Unlock()
		<-w.done

		w.mu.Lock()
		err := w.err
		w.mu.Unlock()
		if w.closer != nil {
			if cerr := w.closer.Close(); cerr != nil && err == nil {
				err = &WriteError{Err: cerr}
			}
		}
		w.closeErr = err
	})
	return w.closeErr
}

// drain is the only goroutine touching dst.
func (w *Writer) drain() {
	defer close(w.done)
	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		for len(w.pending) == 0 && !w.closing {
			w.wake.Wait()
		}
		if len(w.pending) == 0 {
			return
		}
		chunk := w.pending
		w.pending = nil

		w.mu.Unlock()
		_, err := w.dst.Write(chunk)
		w.mu.Lock()

		w.buffered -= len(chunk)
		if err != nil {
			w.err = &WriteError{Err: err}
			w.pending = nil
			w.buffered = 0
			w.release(w.err)
			return
		}
		if w.buffered < w.highWaterMark {
			w.release(nil)
		}
	}
}

// release resolves every write waiting for drain, in call order.
func (w *Writer) release(err error) {
	for _, ch := range w.waiters {
		ch <- err
	}
	w.waiters = nil
}
