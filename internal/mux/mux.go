// Package mux implements an ordered output multiplexer.
//
// Producers reserve ordering slots and stream bytes into them concurrently.
// The mux guarantees the sink receives each segment's bytes whole, in strict
// reservation order: segment N never reaches the sink until segment N-1 has
// signaled completion. Internally this is a lock-protected FIFO of pending
// segments plus a single active-segment slot, advanced only on an explicit
// completion signal.
package mux

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned when writing to a segment after Close.
var ErrClosed = errors.New("mux: segment closed")

// Mux serializes concurrent byte streams into a single sink.
// Only the mux writes to the sink, and only one segment's bytes flow at a
// time. The mux never closes the sink; that is the caller's responsibility
// once all expected segments have completed.
type Mux struct {
	mu   sync.Mutex
	cond *sync.Cond
	sink io.Writer

	nextSeq  uint64
	pending  []*Segment // reserved, not yet active, FIFO
	active   *Segment
	inFlight int

	completed uint64
	bytesOut  int64
}

// Segment is one producer's ordered slot in the output stream.
// Writes before the segment becomes active are buffered; once active they
// pass straight through to the sink. Close signals completion and releases
// the slot. A segment closed with zero bytes still occupies and yields its
// ordering slot.
type Segment struct {
	mux    *Mux
	seq    uint64
	buf    bytes.Buffer
	active bool
	closed bool
	err    error
}

// New creates a Mux writing to sink.
func New(sink io.Writer) *Mux {
	m := &Mux{sink: sink}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Reserve allocates the next ordering slot. Non-blocking.
// The caller owns the segment until Close.
func (m *Mux) Reserve() *Segment {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Segment{mux: m, seq: m.nextSeq}
	m.nextSeq++
	m.inFlight++

	if m.active == nil && len(m.pending) == 0 {
		s.active = true
		m.active = s
	} else {
		m.pending = append(m.pending, s)
	}
	return s
}

// Submit reserves a slot and copies r into it in the background, closing
// the segment at EOF. Non-blocking.
func (m *Mux) Submit(r io.Reader) *Segment {
	s := m.Reserve()
	go func() {
		_, err := io.Copy(s, r)
		if err != nil {
			m.mu.Lock()
			s.err = err
			m.mu.Unlock()
		}
		s.Close()
	}()
	return s
}

// Wait blocks until every reserved segment has completed and been
// forwarded to the sink.
func (m *Mux) Wait() {
	m.mu.Lock()
	for m.inFlight > 0 {
		m.cond.Wait()
	}
	m.mu.Unlock()
}

// Stats returns the number of segments reserved, segments completed, and
// total bytes forwarded to the sink.
func (m *Mux) Stats() (reserved, completed uint64, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextSeq, m.completed, m.bytesOut
}

// retire finalizes the completed active segment. Caller holds mu.
func (m *Mux) retire(s *Segment) {
	s.active = false
	m.active = nil
	m.inFlight--
	m.completed++
}

// promote advances the queue head into the active slot, flushing whatever
// it buffered while waiting. Already-closed heads are flushed and retired
// in the same pass so completed segments never stall the queue.
// Caller holds mu.
func (m *Mux) promote() {
	for len(m.pending) > 0 {
		s := m.pending[0]
		m.pending = m.pending[1:]
		s.active = true
		m.active = s

		if s.buf.Len() > 0 {
			n, _ := m.sink.Write(s.buf.Bytes())
			m.bytesOut += int64(n)
			s.buf.Reset()
		}

		if s.closed {
			m.retire(s)
			continue
		}
		return
	}
}

// Seq returns the segment's submission sequence number.
func (s *Segment) Seq() uint64 {
	return s.seq
}

// Err returns the copy error for segments created via Submit, if any.
func (s *Segment) Err() error {
	s.mux.mu.Lock()
	defer s.mux.mu.Unlock()
	return s.err
}

// Write implements io.Writer. Bytes go straight to the sink when the
// segment is active, and into the segment's buffer otherwise.
func (s *Segment) Write(p []byte) (int, error) {
	m := s.mux
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if s.active {
		n, err := m.sink.Write(p)
		m.bytesOut += int64(n)
		return n, err
	}
	return s.buf.Write(p)
}

// Close signals completion. If the segment is active, the next pending
// segment is promoted. Close is idempotent.
func (s *Segment) Close() error {
	m := s.mux
	m.mu.Lock()
	if s.closed {
		m.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.active {
		m.retire(s)
		m.promote()
	}
	m.mu.Unlock()

	m.cond.Broadcast()
	return nil
}
