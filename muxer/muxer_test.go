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

package muxer_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/blinklabs-io/goaleph/muxer"
	"go.uber.org/goleak"
)

const testTimeout = 2 * time.Second

func writeSegment(conn net.Conn, protocolId uint16, payload []byte) error {
	buf := &bytes.Buffer{}
	header := muxer.SegmentHeader{
		ProtocolId:    protocolId,
		PayloadLength: uint16(len(payload)), // #nosec G115
	}
	if err := binary.Write(buf, binary.BigEndian, header); err != nil {
		return err
	}
	buf.Write(payload)
	_, err := conn.Write(buf.Bytes())
	return err
}

func readSegment(t *testing.T, recvChan <-chan *muxer.Segment) *muxer.Segment {
	t.Helper()
	select {
	case segment, ok := <-recvChan:
		if !ok {
			t.Fatalf("receive channel closed unexpectedly")
		}
		return segment
	case <-time.After(testTimeout):
		t.Fatalf("did not receive segment before timeout")
	}
	return nil
}

func waitClosed(t *testing.T, m *muxer.Muxer) error {
	t.Helper()
	var ret error
	timeout := time.After(testTimeout)
	for {
		select {
		case err, ok := <-m.ErrorChan():
			if !ok {
				return ret
			}
			ret = err
		case <-timeout:
			t.Fatalf("muxer did not shut down before timeout")
		}
	}
}

func TestSegmentCreation(t *testing.T) {
	tests := []struct {
		name       string
		payload    []byte
		protocolId uint16
		expectNil  bool
	}{
		{
			name:       "valid segment",
			protocolId: 0x01,
			payload:    []byte("test payload"),
		},
		{
			name:       "empty payload",
			protocolId: 0x02,
			payload:    []byte{},
		},
		{
			name:       "maximum payload size",
			protocolId: 0x03,
			payload:    make([]byte, muxer.SegmentMaxPayloadLength),
		},
		{
			name:       "payload too large",
			protocolId: 0x04,
			payload:    make([]byte, muxer.SegmentMaxPayloadLength+1),
			expectNil:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segment := muxer.NewSegment(tt.protocolId, tt.payload)
			if tt.expectNil {
				if segment != nil {
					t.Errorf("expected nil segment for oversized payload, got %v", segment)
				}
				return
			}
			if segment == nil {
				t.Fatalf("expected valid segment, got nil")
			}
			if segment.GetProtocolId() != tt.protocolId {
				t.Errorf(
					"expected protocol ID %d, got %d",
					tt.protocolId,
					segment.GetProtocolId(),
				)
			}
			if !bytes.Equal(segment.Payload, tt.payload) {
				t.Errorf("expected payload %v, got %v", tt.payload, segment.Payload)
			}
			if int(segment.PayloadLength) != len(tt.payload) {
				t.Errorf(
					"expected payload length %d, got %d",
					len(tt.payload),
					segment.PayloadLength,
				)
			}
		})
	}
}

func TestMuxerStopIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)
	client, server := net.Pipe()
	m := muxer.New(client)
	m.Stop()
	// Should be able to stop multiple times without panic
	m.Stop()
	client.Close()
	server.Close()
	if err := waitClosed(t, m); err != nil {
		t.Errorf("did not expect an error after Stop, got: %s", err)
	}
}

func TestMuxerSendReceive(t *testing.T) {
	defer goleak.VerifyNone(t)
	clientConn, serverConn := net.Pipe()
	client := muxer.New(clientConn)
	server := muxer.New(serverConn)
	serverRecv := server.RegisterProtocol(0x02)
	server.Start()
	payloads := [][]byte{
		[]byte("first"),
		[]byte("second"),
		{},
	}
	go func() {
		for _, payload := range payloads {
			if err := client.Send(muxer.NewSegment(0x02, payload)); err != nil {
				return
			}
		}
	}()
	for _, payload := range payloads {
		segment := readSegment(t, serverRecv)
		if segment.GetProtocolId() != 0x02 {
			t.Errorf("expected protocol ID 0x02, got 0x%04x", segment.GetProtocolId())
		}
		if !bytes.Equal(segment.Payload, payload) {
			t.Errorf("expected payload %q, got %q", payload, segment.Payload)
		}
	}
	client.Stop()
	server.Stop()
	clientConn.Close()
	serverConn.Close()
	waitClosed(t, client)
	waitClosed(t, server)
	// Receive channels are closed on shutdown
	if _, ok := <-serverRecv; ok {
		t.Errorf("expected receive channel to be closed")
	}
}

func TestMuxerWaitsForStart(t *testing.T) {
	defer goleak.VerifyNone(t)
	clientConn, serverConn := net.Pipe()
	m := muxer.New(serverConn)
	recvChan := m.RegisterProtocol(0x00)
	dataChan := m.RegisterProtocol(0x01)
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		if err := writeSegment(clientConn, 0x00, []byte("hello")); err != nil {
			t.Errorf("unexpected error writing segment: %s", err)
			return
		}
		if err := writeSegment(clientConn, 0x01, []byte("data")); err != nil {
			t.Errorf("unexpected error writing segment: %s", err)
		}
	}()
	segment := readSegment(t, recvChan)
	if string(segment.Payload) != "hello" {
		t.Errorf("expected first payload %q, got %q", "hello", segment.Payload)
	}
	select {
	case <-dataChan:
		t.Fatalf("received second segment before Start")
	case <-time.After(50 * time.Millisecond):
	}
	m.Start()
	segment = readSegment(t, dataChan)
	if string(segment.Payload) != "data" {
		t.Errorf("expected second payload %q, got %q", "data", segment.Payload)
	}
	<-writeDone
	m.Stop()
	clientConn.Close()
	serverConn.Close()
	waitClosed(t, m)
}

func TestMuxerPreStartSegments(t *testing.T) {
	defer goleak.VerifyNone(t)
	clientConn, serverConn := net.Pipe()
	m := muxer.New(serverConn, muxer.WithPreStartSegments(2))
	recvChan := m.RegisterProtocol(0x00)
	dataChan := m.RegisterProtocol(0x01)
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for _, payload := range []string{"challenge", "hello"} {
			if err := writeSegment(clientConn, 0x00, []byte(payload)); err != nil {
				t.Errorf("unexpected error writing segment: %s", err)
				return
			}
		}
		if err := writeSegment(clientConn, 0x01, []byte("data")); err != nil {
			t.Errorf("unexpected error writing segment: %s", err)
		}
	}()
	for _, expected := range []string{"challenge", "hello"} {
		segment := readSegment(t, recvChan)
		if string(segment.Payload) != expected {
			t.Errorf("expected payload %q, got %q", expected, segment.Payload)
		}
	}
	select {
	case <-dataChan:
		t.Fatalf("received third segment before Start")
	case <-time.After(50 * time.Millisecond):
	}
	m.Start()
	segment := readSegment(t, dataChan)
	if string(segment.Payload) != "data" {
		t.Errorf("expected payload %q, got %q", "data", segment.Payload)
	}
	<-writeDone
	m.Stop()
	clientConn.Close()
	serverConn.Close()
	waitClosed(t, m)
}

func TestMuxerUnknownProtocol(t *testing.T) {
	defer goleak.VerifyNone(t)
	clientConn, serverConn := net.Pipe()
	m := muxer.New(serverConn)
	m.RegisterProtocol(0x01)
	m.Start()
	go func() {
		buf := &bytes.Buffer{}
		_ = binary.Write(buf, binary.BigEndian, muxer.SegmentHeader{ProtocolId: 0x05})
		_, _ = clientConn.Write(buf.Bytes())
	}()
	err := waitClosed(t, m)
	if !errors.Is(err, muxer.ErrUnknownProtocol) {
		t.Errorf("expected ErrUnknownProtocol, got: %v", err)
	}
	clientConn.Close()
	serverConn.Close()
}

func TestMuxerUnknownProtocolFallback(t *testing.T) {
	defer goleak.VerifyNone(t)
	clientConn, serverConn := net.Pipe()
	m := muxer.New(serverConn)
	fallback := m.RegisterProtocol(muxer.ProtocolUnknown)
	m.Start()
	go func() {
		_ = writeSegment(clientConn, 0x05, []byte("stray"))
	}()
	segment := readSegment(t, fallback)
	if segment.GetProtocolId() != 0x05 {
		t.Errorf("expected protocol ID 0x05, got 0x%04x", segment.GetProtocolId())
	}
	m.Stop()
	clientConn.Close()
	serverConn.Close()
	waitClosed(t, m)
}

func TestMuxerConnectionClosed(t *testing.T) {
	defer goleak.VerifyNone(t)
	clientConn, serverConn := net.Pipe()
	m := muxer.New(serverConn)
	recvChan := m.RegisterProtocol(0x01)
	clientConn.Close()
	err := waitClosed(t, m)
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got: %v", err)
	}
	if _, ok := <-recvChan; ok {
		t.Errorf("expected receive channel to be closed")
	}
	// Registering after shutdown returns a closed channel
	if _, ok := <-m.RegisterProtocol(0x02); ok {
		t.Errorf("expected late registration to return a closed channel")
	}
	if err := m.Send(muxer.NewSegment(0x01, nil)); err == nil {
		t.Errorf("expected error sending after shutdown")
	}
	serverConn.Close()
}
