// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package muxer implements the multiplexer that allows several topics to share one
// network connection
package muxer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

const (
	// Magic number chosen to represent unknown protocols
	ProtocolUnknown uint16 = 0xabcd

	// Size of the receive buffer for each registered protocol
	protocolReceiverBufferSize = 10
)

// ErrUnknownProtocol is returned via the error channel when a segment arrives for a protocol
// ID without a registered receiver
var ErrUnknownProtocol = errors.New("received message for unknown protocol ID")

// Muxer wraps a connection and routes incoming segments to the channel registered for their
// protocol ID
type Muxer struct {
	conn                   net.Conn
	sendMutex              sync.Mutex
	startChan              chan struct{}
	doneChan               chan struct{}
	errorChan              chan error
	onceStart              sync.Once
	onceStop               sync.Once
	protocolReceiversMutex sync.RWMutex
	protocolReceivers      map[uint16]chan *Segment
	receiversClosed        bool
	preStartSegments       int
}

// MuxerOptionFunc is a type that represents functions that modify the Muxer config
type MuxerOptionFunc func(*Muxer)

// WithPreStartSegments specifies how many segments the read loop delivers before Start is
// called. The default is 1
func WithPreStartSegments(count int) MuxerOptionFunc {
	return func(m *Muxer) {
		m.preStartSegments = count
	}
}

// New returns a new Muxer for the provided connection. The read loop starts immediately but
// delivers only a limited number of segments (one by default) until Start is called
func New(conn net.Conn, options ...MuxerOptionFunc) *Muxer {
	m := &Muxer{
		conn:              conn,
		startChan:         make(chan struct{}),
		doneChan:          make(chan struct{}),
		errorChan:         make(chan error, 1),
		protocolReceivers: make(map[uint16]chan *Segment),
		preStartSegments:  1,
	}
	for _, option := range options {
		option(m)
	}
	go m.readLoop()
	return m
}

// Start allows the read loop to continue past the pre-start segments
func (m *Muxer) Start() {
	m.onceStart.Do(func() {
		close(m.startChan)
	})
}

// Stop shuts down the muxer. The read loop exits once its pending read on the connection
// returns, so the caller is expected to close the connection as well
func (m *Muxer) Stop() {
	m.onceStop.Do(func() {
		close(m.doneChan)
	})
}

// ErrorChan returns a channel that receives at most one error from the read loop. It is
// closed when the read loop exits
func (m *Muxer) ErrorChan() <-chan error {
	return m.errorChan
}

// RegisterProtocol returns the channel that receives segments for the specified protocol ID.
// The channel is closed when the read loop exits
func (m *Muxer) RegisterProtocol(protocolId uint16) <-chan *Segment {
	m.protocolReceiversMutex.Lock()
	defer m.protocolReceiversMutex.Unlock()
	if recvChan, ok := m.protocolReceivers[protocolId]; ok {
		return recvChan
	}
	recvChan := make(chan *Segment, protocolReceiverBufferSize)
	if m.receiversClosed {
		close(recvChan)
		return recvChan
	}
	m.protocolReceivers[protocolId] = recvChan
	return recvChan
}

// Send writes a segment to the connection
func (m *Muxer) Send(msg *Segment) error {
	if msg == nil {
		return errors.New("nil segment")
	}
	select {
	case <-m.doneChan:
		return io.ErrClosedPipe
	default:
	}
	// We use a mutex to make sure only one protocol can send at a time
	m.sendMutex.Lock()
	defer m.sendMutex.Unlock()
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.BigEndian, msg.SegmentHeader); err != nil {
		return err
	}
	buf.Write(msg.Payload)
	if _, err := m.conn.Write(buf.Bytes()); err != nil {
		return err
	}
	return nil
}

func (m *Muxer) sendError(err error) {
	// Errors after shutdown are the result of the connection being closed
	select {
	case <-m.doneChan:
		return
	default:
	}
	select {
	case m.errorChan <- err:
	default:
	}
}

func (m *Muxer) receiver(protocolId uint16) chan *Segment {
	m.protocolReceiversMutex.RLock()
	defer m.protocolReceiversMutex.RUnlock()
	recvChan := m.protocolReceivers[protocolId]
	if recvChan == nil {
		// Try the "unknown protocol" receiver if we didn't find an explicit one
		recvChan = m.protocolReceivers[ProtocolUnknown]
	}
	return recvChan
}

func (m *Muxer) shutdown() {
	m.Stop()
	m.protocolReceiversMutex.Lock()
	for _, recvChan := range m.protocolReceivers {
		close(recvChan)
	}
	m.receiversClosed = true
	m.protocolReceiversMutex.Unlock()
	close(m.errorChan)
}

func (m *Muxer) readLoop() {
	defer m.shutdown()
	started := false
	delivered := 0
	for {
		// Break out of read loop if we're shutting down
		select {
		case <-m.doneChan:
			return
		default:
		}
		header := SegmentHeader{}
		if err := binary.Read(m.conn, binary.BigEndian, &header); err != nil {
			m.sendError(err)
			return
		}
		msg := &Segment{
			SegmentHeader: header,
			Payload:       make([]byte, header.PayloadLength),
		}
		// We use ReadFull because it guarantees to read the expected number of bytes or
		// return an error
		if _, err := io.ReadFull(m.conn, msg.Payload); err != nil {
			m.sendError(err)
			return
		}
		recvChan := m.receiver(msg.GetProtocolId())
		if recvChan == nil {
			m.sendError(
				fmt.Errorf("%w %d", ErrUnknownProtocol, msg.GetProtocolId()),
			)
			return
		}
		select {
		case <-m.doneChan:
			return
		case recvChan <- msg:
		}
		delivered++
		// Wait until the muxer is started to continue
		// We don't want to read past the hello exchange until the caller is ready
		if !started && delivered >= m.preStartSegments {
			select {
			case <-m.doneChan:
				return
			case <-m.startChan:
				started = true
			}
		}
	}
}
