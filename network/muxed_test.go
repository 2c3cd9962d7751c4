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

package network_test

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/blinklabs-io/goaleph/muxer"
	"github.com/blinklabs-io/goaleph/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type muxedPair struct {
	clientConn net.Conn
	serverConn net.Conn
	client     *muxer.Muxer
	server     *muxer.Muxer
}

func newMuxedPair() *muxedPair {
	clientConn, serverConn := net.Pipe()
	return &muxedPair{
		clientConn: clientConn,
		serverConn: serverConn,
		client:     muxer.New(clientConn),
		server:     muxer.New(serverConn),
	}
}

func (p *muxedPair) start() {
	p.client.Start()
	p.server.Start()
}

func (p *muxedPair) close() {
	p.client.Stop()
	p.server.Stop()
	p.clientConn.Close()
	p.serverConn.Close()
	for range p.client.ErrorChan() {
	}
	for range p.server.ErrorChan() {
	}
}

func TestMuxedNetworkSendReceive(t *testing.T) {
	defer goleak.VerifyNone(t)
	pair := newMuxedPair()
	sender := network.NewMuxedNetwork[testSplit](pair.client, 3)
	receiver := network.NewMuxedNetwork[testSplit](pair.server, 3)
	pair.start()
	expected := []testSplit{
		network.NewLeft[uint64, string](1),
		network.NewRight[uint64]("a"),
	}
	errChan := make(chan error, 1)
	go func() {
		for _, item := range expected {
			if err := sender.Send(item, network.Everyone()); err != nil {
				errChan <- err
				return
			}
		}
		errChan <- nil
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, item := range expected {
		received, err := receiver.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, item, received)
	}
	require.NoError(t, <-errChan)
	pair.close()
	_, err := receiver.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestMuxedNetworkSkipsUndecodable(t *testing.T) {
	defer goleak.VerifyNone(t)
	pair := newMuxedPair()
	rawSender := network.NewMuxedNetwork[string](pair.client, 3)
	sender := network.NewMuxedNetwork[uint64](pair.client, 4)
	receiver := network.NewMuxedNetwork[uint64](pair.server, 3)
	pair.server.RegisterProtocol(4)
	pair.start()
	go func() {
		_ = rawSender.Send("not a number", network.Everyone())
		_ = sender.Send(1, network.Everyone())
		// Back on the receiving topic with valid data
		_ = network.NewMuxedNetwork[uint64](pair.client, 3).Send(9, network.Everyone())
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	item, err := receiver.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), item)
	pair.close()
}

func TestMuxedNetworkOversizedSend(t *testing.T) {
	defer goleak.VerifyNone(t)
	pair := newMuxedPair()
	sender := network.NewMuxedNetwork[string](pair.client, 3)
	pair.start()
	err := sender.Send(
		strings.Repeat("x", muxer.SegmentMaxPayloadLength),
		network.Everyone(),
	)
	assert.ErrorIs(t, err, network.ErrSendFailed)
	pair.close()
}

func TestMuxedNetworkSendAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)
	pair := newMuxedPair()
	sender := network.NewMuxedNetwork[uint64](pair.client, 3)
	pair.start()
	pair.close()
	err := sender.Send(1, network.Everyone())
	assert.ErrorIs(t, err, network.ErrSendFailed)
}
