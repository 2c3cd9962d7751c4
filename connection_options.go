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

package aleph

import (
	"crypto/ed25519"
	"log/slog"
	"net"
	"time"

	"github.com/blinklabs-io/goaleph/handshake"
)

// ConnectionOptionFunc is a type that represents functions that modify the Connection config
type ConnectionOptionFunc func(*Connection)

// WithConnection specifies an existing connection to use. If none is provided, the Dial()
// function can be used to create one later
func WithConnection(conn net.Conn) ConnectionOptionFunc {
	return func(c *Connection) {
		c.conn = conn
	}
}

// WithPrivateKey specifies the identity key used to sign the hello
func WithPrivateKey(privateKey ed25519.PrivateKey) ConnectionOptionFunc {
	return func(c *Connection) {
		c.privateKey = privateKey
	}
}

// WithHandshake specifies the handshake sent to the remote end
func WithHandshake(h *handshake.Handshake) ConnectionOptionFunc {
	return func(c *Connection) {
		c.handshake = h
	}
}

// WithServer specifies whether to act as a server, which marks the connection as inbound
func WithServer(server bool) ConnectionOptionFunc {
	return func(c *Connection) {
		c.server = server
	}
}

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) ConnectionOptionFunc {
	return func(c *Connection) {
		c.logger = logger
	}
}

// WithTopics specifies the topics to register with the muxer. Data arriving for a topic
// that isn't registered is a muxer error and closes the connection
func WithTopics(topics ...Topic) ConnectionOptionFunc {
	return func(c *Connection) {
		for _, topic := range topics {
			if topic == TopicHello {
				continue
			}
			c.topics[topic] = true
		}
	}
}

// WithHelloTimeout specifies how long to wait for the remote hello
func WithHelloTimeout(timeout time.Duration) ConnectionOptionFunc {
	return func(c *Connection) {
		c.helloTimeout = timeout
	}
}

// WithDelayMuxerStart specifies whether to delay the muxer start. This is useful if you need
// to take some custom actions before the muxer starts processing messages, such as asking
// for admission of the remote peer
func WithDelayMuxerStart(delayMuxerStart bool) ConnectionOptionFunc {
	return func(c *Connection) {
		c.delayMuxerStart = delayMuxerStart
	}
}
