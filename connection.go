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

// Package aleph implements the node-level networking of an Aleph node.
//
// A Connection wraps a net.Conn with a muxer, so that several topics share it, and
// authenticates the remote end with a signed hello carrying its handshake. The
// ConnectionManager asks the base protocol Service to admit each connection and keeps
// track of the admitted ones.
package aleph

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/goaleph/cbor"
	"github.com/blinklabs-io/goaleph/common"
	"github.com/blinklabs-io/goaleph/handshake"
	"github.com/blinklabs-io/goaleph/muxer"
	"github.com/blinklabs-io/goaleph/network"
)

const (
	DefaultHelloTimeout = 10 * time.Second

	helloNonceSize = 32
)

var (
	ErrConnectionEstablished = errors.New("a connection was already established")
	ErrMissingIdentity       = errors.New("missing private key or handshake")
	ErrInvalidHello          = errors.New("invalid hello")
	ErrTopicNotRegistered    = errors.New("topic not registered")
)

var connectionIdCounter atomic.Uint64

// ConnectionId uniquely identifies a connection within the process
type ConnectionId uint64

// challenge carries a fresh nonce the remote end must sign in its hello
type challenge struct {
	cbor.StructAsArray
	Nonce []byte
}

// hello is exchanged by both sides, after the challenges, before any other topic is
// processed. The signature covers the handshake followed by the remote nonce
type hello struct {
	cbor.StructAsArray
	PublicKey []byte
	Handshake []byte
	Signature []byte
}

// The Connection type is a wrapper around a net.Conn object that handles communication over
// that connection using a muxer with one protocol ID per topic
type Connection struct {
	id              ConnectionId
	conn            net.Conn
	muxer           *muxer.Muxer
	logger          *slog.Logger
	privateKey      ed25519.PrivateKey
	handshake       *handshake.Handshake
	server          bool
	topics          map[Topic]bool
	helloTimeout    time.Duration
	delayMuxerStart bool
	remotePeerId    common.PeerId
	remoteHandshake []byte
	errorChan       chan error
	doneChan        chan struct{}
	waitGroup       sync.WaitGroup
	onceClose       sync.Once
}

// NewConnection returns a new Connection object with the specified options. If a connection
// is provided, the hello exchange will be performed. An error will be returned if it fails
func NewConnection(options ...ConnectionOptionFunc) (*Connection, error) {
	c := &Connection{
		id:           ConnectionId(connectionIdCounter.Add(1)),
		topics:       make(map[Topic]bool),
		helloTimeout: DefaultHelloTimeout,
		errorChan:    make(chan error, 10),
		doneChan:     make(chan struct{}),
	}
	// Apply provided options functions
	for _, option := range options {
		option(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.privateKey == nil || c.handshake == nil {
		return nil, ErrMissingIdentity
	}
	if c.conn != nil {
		if err := c.setupConnection(); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// Id returns the process-unique connection ID
func (c *Connection) Id() ConnectionId {
	return c.id
}

// Muxer returns the muxer object for the connection
func (c *Connection) Muxer() *muxer.Muxer {
	return c.muxer
}

// ErrorChan returns the channel for asynchronous errors. It is closed once the connection
// is closed
func (c *Connection) ErrorChan() <-chan error {
	return c.errorChan
}

// Inbound returns whether the remote end initiated the connection
func (c *Connection) Inbound() bool {
	return c.server
}

// RemotePeerId returns the peer ID proven by the remote hello
func (c *Connection) RemotePeerId() common.PeerId {
	return c.remotePeerId
}

// RemoteHandshake returns the raw handshake sent by the remote end
func (c *Connection) RemoteHandshake() []byte {
	return c.remoteHandshake
}

// RemoteAddr returns the address of the remote end
func (c *Connection) RemoteAddr() net.Addr {
	if c.conn == nil {
		return nil
	}
	return c.conn.RemoteAddr()
}

// Dial will establish a connection using the specified protocol and address. These
// parameters are passed to the [net.Dialer]. The hello exchange will be performed when a
// connection is established
func (c *Connection) Dial(ctx context.Context, proto string, address string) error {
	if c.conn != nil {
		return ErrConnectionEstablished
	}
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, proto, address)
	if err != nil {
		return err
	}
	c.conn = conn
	if err := c.setupConnection(); err != nil {
		c.Close()
		return err
	}
	return nil
}

// Start starts the muxer when it was delayed with WithDelayMuxerStart
func (c *Connection) Start() {
	if c.muxer != nil {
		c.muxer.Start()
	}
}

// Close will shutdown the connection
func (c *Connection) Close() error {
	var err error
	c.onceClose.Do(func() {
		// Close doneChan to signify that we're shutting down
		close(c.doneChan)
		if c.muxer != nil {
			c.muxer.Stop()
		}
		if c.conn != nil {
			err = c.conn.Close()
		}
		// Wait for other goroutines to finish
		c.waitGroup.Wait()
		if c.muxer != nil {
			// Wait for the muxer read loop to exit
			for range c.muxer.ErrorChan() {
			}
		}
		close(c.errorChan)
	})
	return err
}

// NewConnectionNetwork returns a network carrying T over a topic of the connection. The topic
// must have been registered with WithTopics
func NewConnectionNetwork[T any](
	c *Connection,
	topic Topic,
) (*network.MuxedNetwork[T], error) {
	if !c.topics[topic] {
		return nil, fmt.Errorf("%w: %s", ErrTopicNotRegistered, topic)
	}
	return network.NewMuxedNetwork[T](
		c.muxer,
		topic.ProtocolId(),
		network.WithMuxedLogger(c.logger),
	), nil
}

// setupConnection establishes the muxer, registers the topics and performs the hello
// exchange
func (c *Connection) setupConnection() error {
	c.muxer = muxer.New(c.conn, muxer.WithPreStartSegments(2))
	// Both messages share the hello topic. Each side sends its challenge before its hello
	challengeNetwork := network.NewMuxedNetwork[challenge](
		c.muxer,
		TopicHello.ProtocolId(),
		network.WithMuxedLogger(c.logger),
	)
	helloNetwork := network.NewMuxedNetwork[hello](
		c.muxer,
		TopicHello.ProtocolId(),
		network.WithMuxedLogger(c.logger),
	)
	for topic := range c.topics {
		c.muxer.RegisterProtocol(topic.ProtocolId())
	}
	// Start Goroutine to pass along errors from the muxer
	c.waitGroup.Add(1)
	go func() {
		defer c.waitGroup.Done()
		select {
		case <-c.doneChan:
			return
		case err, ok := <-c.muxer.ErrorChan():
			if !ok {
				return
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				// Return a bare io.EOF error if error is EOF/ErrUnexpectedEOF
				c.errorChan <- io.EOF
			} else {
				// Wrap error message to denote it comes from the muxer
				c.errorChan <- fmt.Errorf("muxer error: %w", err)
			}
			// Close connection on muxer errors
			go c.Close()
		}
	}()
	if err := c.exchangeHello(challengeNetwork, helloNetwork); err != nil {
		return err
	}
	c.logger.Debug(
		"hello exchange complete",
		"component", "network",
		"connection_id", c.id,
		"peer_id", c.remotePeerId.String(),
		"inbound", c.server,
	)
	if !c.delayMuxerStart {
		c.muxer.Start()
	}
	return nil
}

func (c *Connection) exchangeHello(
	challengeNetwork *network.MuxedNetwork[challenge],
	helloNetwork *network.MuxedNetwork[hello],
) error {
	handshakeData, err := c.handshake.Encode()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.helloTimeout)
	defer cancel()
	localChallenge := challenge{
		Nonce: make([]byte, helloNonceSize),
	}
	if _, err := rand.Read(localChallenge.Nonce); err != nil {
		return err
	}
	remoteChallenge, err := exchangeMessage(ctx, c, challengeNetwork, localChallenge)
	if err != nil {
		return fmt.Errorf("failed to exchange challenge: %w", err)
	}
	if len(remoteChallenge.Nonce) != helloNonceSize {
		return fmt.Errorf("%w: bad nonce length %d", ErrInvalidHello, len(remoteChallenge.Nonce))
	}
	localHello := hello{
		PublicKey: c.privateKey.Public().(ed25519.PublicKey),
		Handshake: handshakeData,
		Signature: ed25519.Sign(
			c.privateKey,
			helloSignedData(handshakeData, remoteChallenge.Nonce),
		),
	}
	remoteHello, err := exchangeMessage(ctx, c, helloNetwork, localHello)
	if err != nil {
		return fmt.Errorf("failed to exchange hello: %w", err)
	}
	if len(remoteHello.PublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: bad public key length %d", ErrInvalidHello, len(remoteHello.PublicKey))
	}
	// The remote must have signed the nonce we sent in this session
	if !ed25519.Verify(
		remoteHello.PublicKey,
		helloSignedData(remoteHello.Handshake, localChallenge.Nonce),
		remoteHello.Signature,
	) {
		return fmt.Errorf("%w: bad signature", ErrInvalidHello)
	}
	peerId, err := common.NewPeerIdFromPublicKey(remoteHello.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidHello, err)
	}
	c.remotePeerId = peerId
	c.remoteHandshake = remoteHello.Handshake
	return nil
}

func helloSignedData(handshakeData []byte, nonce []byte) []byte {
	ret := make([]byte, 0, len(handshakeData)+len(nonce))
	ret = append(ret, handshakeData...)
	return append(ret, nonce...)
}

// exchangeMessage sends msg and receives the remote counterpart. Both sides send first, so
// sending must not wait for the remote message
func exchangeMessage[T any](
	ctx context.Context,
	c *Connection,
	n *network.MuxedNetwork[T],
	msg T,
) (T, error) {
	var ret T
	sendErrChan := make(chan error, 1)
	go func() {
		sendErrChan <- n.Send(msg, network.Everyone())
	}()
	remoteMsg, err := n.Next(ctx)
	if err != nil {
		// Unblock a pending send before waiting for it
		c.conn.Close()
		<-sendErrChan
		return ret, err
	}
	select {
	case err := <-sendErrChan:
		if err != nil {
			return ret, err
		}
	case <-ctx.Done():
		c.conn.Close()
		<-sendErrChan
		return ret, ctx.Err()
	}
	return remoteMsg, nil
}
