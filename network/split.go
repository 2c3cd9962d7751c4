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
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/goaleph/cbor"
)

// Side identifies which of the two data types a Split carries
type Side uint8

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "Left"
	case SideRight:
		return "Right"
	default:
		return fmt.Sprintf("Side(%d)", uint8(s))
	}
}

// Split carries either a left or a right value. It is used to route two kinds of data
// through one network
type Split[L, R any] struct {
	side  Side
	left  L
	right R
}

// NewLeft wraps left data
func NewLeft[L, R any](data L) Split[L, R] {
	return Split[L, R]{
		side: SideLeft,
		left: data,
	}
}

// NewRight wraps right data
func NewRight[L, R any](data R) Split[L, R] {
	return Split[L, R]{
		side:  SideRight,
		right: data,
	}
}

func (s Split[L, R]) Side() Side {
	return s.side
}

// Left returns the left value and whether the Split carries one
func (s Split[L, R]) Left() (L, bool) {
	return s.left, s.side == SideLeft
}

// Right returns the right value and whether the Split carries one
func (s Split[L, R]) Right() (R, bool) {
	return s.right, s.side == SideRight
}

// Version returns the version of the left data type. Both data types are expected to
// follow the same protocol versions, with the left one being canonical
func (s Split[L, R]) Version() Version {
	var tmpLeft L
	if versioned, ok := any(tmpLeft).(Versioned); ok {
		return versioned.Version()
	}
	return 0
}

type splitWire struct {
	cbor.StructAsArray
	Side Side
	Data cbor.RawMessage
}

func (s Split[L, R]) MarshalCBOR() ([]byte, error) {
	var data []byte
	var err error
	switch s.side {
	case SideLeft:
		data, err = cbor.Encode(s.left)
	case SideRight:
		data, err = cbor.Encode(s.right)
	default:
		return nil, fmt.Errorf("unknown split side: %d", s.side)
	}
	if err != nil {
		return nil, err
	}
	return cbor.Encode(
		&splitWire{
			Side: s.side,
			Data: data,
		},
	)
}

func (s *Split[L, R]) UnmarshalCBOR(data []byte) error {
	var tmp splitWire
	if _, err := cbor.Decode(data, &tmp); err != nil {
		return err
	}
	switch tmp.Side {
	case SideLeft:
		var left L
		if _, err := cbor.Decode(tmp.Data, &left); err != nil {
			return err
		}
		*s = NewLeft[L, R](left)
	case SideRight:
		var right R
		if _, err := cbor.Decode(tmp.Data, &right); err != nil {
			return err
		}
		*s = NewRight[L](right)
	default:
		return fmt.Errorf("unknown split side: %d", tmp.Side)
	}
	return nil
}

type splitSender[L, R, T any] struct {
	sender  Sender[Split[L, R]]
	convert func(T) Split[L, R]
}

func (s *splitSender[L, R, T]) Send(data T, recipient Recipient) error {
	return s.sender.Send(s.convert(data), recipient)
}

type sharedReceiver[L, R any] struct {
	// Holding the token in lockChan grants exclusive access to receiver
	lockChan  chan struct{}
	receiver  Receiver[Split[L, R]]
	leftName  string
	rightName string
	logger    *slog.Logger
	metrics   *SplitMetrics
}

// splitReceiver is one half of a split. Whichever half currently holds the shared lock
// pulls from the underlying receiver and routes the data to the queue of its side
type splitReceiver[L, R, T any] struct {
	shared     *sharedReceiver[L, R]
	translated *queue[T]
	left       *queue[L]
	right      *queue[R]
}

func (r *splitReceiver[L, R, T]) Next(ctx context.Context) (T, error) {
	var ret T
	for {
		if item, ok, done := r.translated.pop(); ok {
			return item, nil
		} else if done {
			return ret, io.EOF
		}
		select {
		case <-ctx.Done():
			return ret, ctx.Err()
		case <-r.translated.signalChan:
		case <-r.translated.closedChan:
		case r.shared.lockChan <- struct{}{}:
			// The sibling may have routed something to us while we were waiting
			if r.translated.len() > 0 {
				<-r.shared.lockChan
				continue
			}
			err := r.forward(ctx)
			<-r.shared.lockChan
			if err != nil {
				return ret, err
			}
		}
	}
}

// forward pulls one item from the underlying receiver and routes it. The caller must hold
// the shared lock
func (r *splitReceiver[L, R, T]) forward(ctx context.Context) error {
	data, err := r.shared.receiver.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			r.shared.logger.Debug(
				"split data channel ended",
				"component", "network",
			)
			r.left.close()
			r.right.close()
			return nil
		}
		return err
	}
	// It's fine if either side can't take the data, as its consumer can be gone for any
	// reason. It's not our job to react to that here
	switch data.Side() {
	case SideLeft:
		left, _ := data.Left()
		if !r.left.push(left) {
			r.discarded(SideLeft, r.shared.leftName)
		}
	case SideRight:
		right, _ := data.Right()
		if !r.right.push(right) {
			r.discarded(SideRight, r.shared.rightName)
		}
	}
	return nil
}

func (r *splitReceiver[L, R, T]) discarded(side Side, name string) {
	r.shared.logger.Debug(
		"unable to send to split network, already disabled",
		"component", "network",
		"side", side.String(),
		"network", name,
	)
	r.shared.metrics.reportDiscarded(name)
}

// Close marks this half as gone. Data routed to it afterwards is discarded
func (r *splitReceiver[L, R, T]) Close() error {
	r.translated.drop()
	return nil
}

// SplitOptionFunc is a type that represents functions that modify the split config
type SplitOptionFunc func(*splitConfig)

type splitConfig struct {
	logger  *slog.Logger
	metrics *SplitMetrics
}

// WithSplitLogger specifies the logger to use
func WithSplitLogger(logger *slog.Logger) SplitOptionFunc {
	return func(c *splitConfig) {
		c.logger = logger
	}
}

// WithSplitMetrics specifies the metrics to report discarded data to
func WithSplitMetrics(metrics *SplitMetrics) SplitOptionFunc {
	return func(c *splitConfig) {
		c.metrics = metrics
	}
}

// SplitNetwork splits a single network into two separate ones. This way multiple
// components can send data to the same underlying session without knowing what types of
// data the other ones use.
//
// Internally the returned networks compete for data from the parent network when Next is
// called, and unpack it into two separate queues. At the same time each waits on the
// queue holding the type it is supposed to return. Sending is passed straight through.
//
// The parent network is consumed and must not be used afterwards. Each returned network
// supports a single consumer. Closing one of them makes the data destined for it be
// discarded without affecting the other.
func SplitNetwork[L, R any](
	component Component[Split[L, R]],
	leftName string,
	rightName string,
	options ...SplitOptionFunc,
) (*SimpleNetwork[L], *SimpleNetwork[R]) {
	cfg := splitConfig{}
	for _, option := range options {
		option(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	sender := component.Sender()
	leftSender := &splitSender[L, R, L]{
		sender:  sender,
		convert: NewLeft[L, R],
	}
	rightSender := &splitSender[L, R, R]{
		sender:  sender,
		convert: NewRight[L, R],
	}
	shared := &sharedReceiver[L, R]{
		lockChan:  make(chan struct{}, 1),
		receiver:  component.Receiver(),
		leftName:  leftName,
		rightName: rightName,
		logger:    cfg.logger,
		metrics:   cfg.metrics,
	}
	leftQueue := newQueue[L]()
	rightQueue := newQueue[R]()
	leftReceiver := &splitReceiver[L, R, L]{
		shared:     shared,
		translated: leftQueue,
		left:       leftQueue,
		right:      rightQueue,
	}
	rightReceiver := &splitReceiver[L, R, R]{
		shared:     shared,
		translated: rightQueue,
		left:       leftQueue,
		right:      rightQueue,
	}
	return NewSimpleNetwork[L](leftReceiver, leftSender),
		NewSimpleNetwork[R](rightReceiver, rightSender)
}
