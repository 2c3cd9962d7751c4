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

package network

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/goaleph/cbor"
	"github.com/blinklabs-io/goaleph/muxer"
)

// MuxedNetwork carries CBOR encoded data over a single topic of a muxed connection. The
// connection has exactly one remote end, so the recipient of sent data is not used
type MuxedNetwork[T any] struct {
	muxer    *muxer.Muxer
	topic    uint16
	recvChan <-chan *muxer.Segment
	logger   *slog.Logger
}

// MuxedOptionFunc is a type that represents functions that modify the MuxedNetwork config
type MuxedOptionFunc func(*muxedConfig)

type muxedConfig struct {
	logger *slog.Logger
}

// WithMuxedLogger specifies the logger to use
func WithMuxedLogger(logger *slog.Logger) MuxedOptionFunc {
	return func(c *muxedConfig) {
		c.logger = logger
	}
}

// NewMuxedNetwork registers the topic with the muxer and returns a network using it. This
// must be called before the muxer is started
func NewMuxedNetwork[T any](
	m *muxer.Muxer,
	topic uint16,
	options ...MuxedOptionFunc,
) *MuxedNetwork[T] {
	cfg := muxedConfig{}
	for _, option := range options {
		option(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &MuxedNetwork[T]{
		muxer:    m,
		topic:    topic,
		recvChan: m.RegisterProtocol(topic),
		logger:   cfg.logger,
	}
}

func (n *MuxedNetwork[T]) Send(data T, _ Recipient) error {
	payload, err := cbor.Encode(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	segment := muxer.NewSegment(n.topic, payload)
	if segment == nil {
		return fmt.Errorf(
			"%w: payload of %d bytes exceeds maximum of %d",
			ErrSendFailed,
			len(payload),
			muxer.SegmentMaxPayloadLength,
		)
	}
	if err := n.muxer.Send(segment); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return nil
}

// Next returns the next decodable item. Items that fail to decode are logged and skipped
func (n *MuxedNetwork[T]) Next(ctx context.Context) (T, error) {
	var ret T
	for {
		select {
		case <-ctx.Done():
			return ret, ctx.Err()
		case segment, ok := <-n.recvChan:
			if !ok {
				return ret, io.EOF
			}
			var data T
			if _, err := cbor.Decode(segment.Payload, &data); err != nil {
				n.logger.Warn(
					"failed to decode network data",
					"component", "network",
					"topic", n.topic,
					"error", err,
				)
				continue
			}
			return data, nil
		}
	}
}

func (n *MuxedNetwork[T]) Sender() Sender[T] {
	return n
}

func (n *MuxedNetwork[T]) Receiver() Receiver[T] {
	return n
}
