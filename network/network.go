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

// Package network provides the data network abstraction used by the finality components
// and the tools to share one network between several of them
package network

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrSendFailed is returned when data could not be handed to the underlying network
var ErrSendFailed = errors.New("send failed")

// NodeIndex is the index of a committee member
type NodeIndex uint32

// Recipient specifies who data is sent to
type Recipient struct {
	everyone bool
	node     NodeIndex
}

// Everyone returns a recipient addressing all connected nodes
func Everyone() Recipient {
	return Recipient{everyone: true}
}

// Node returns a recipient addressing a single node
func Node(node NodeIndex) Recipient {
	return Recipient{node: node}
}

// IsEveryone returns whether the recipient addresses all nodes
func (r Recipient) IsEveryone() bool {
	return r.everyone
}

// Node returns the addressed node and false when the recipient addresses everyone
func (r Recipient) Node() (NodeIndex, bool) {
	return r.node, !r.everyone
}

func (r Recipient) String() string {
	if r.everyone {
		return "Everyone"
	}
	return fmt.Sprintf("Node(%d)", r.node)
}

// Version is a protocol version of a data type
type Version uint16

// Versioned is implemented by data types that carry a protocol version
type Versioned interface {
	Version() Version
}

// Sender sends data over a network
type Sender[T any] interface {
	Send(data T, recipient Recipient) error
}

// Receiver receives data from a network. Next blocks until data is available. It returns
// io.EOF once no more data will ever arrive and ctx.Err() when the context is done
type Receiver[T any] interface {
	Next(ctx context.Context) (T, error)
}

// Network is the full logical channel contract
type Network[T any] interface {
	Sender[T]
	Receiver[T]
}

// Component is a network that can be taken apart into its independent halves
type Component[T any] interface {
	Network[T]
	Sender() Sender[T]
	Receiver() Receiver[T]
}

// SimpleNetwork composes a Component out of a receiver and a sender
type SimpleNetwork[T any] struct {
	receiver Receiver[T]
	sender   Sender[T]
}

// NewSimpleNetwork returns a network backed by the provided halves
func NewSimpleNetwork[T any](receiver Receiver[T], sender Sender[T]) *SimpleNetwork[T] {
	return &SimpleNetwork[T]{
		receiver: receiver,
		sender:   sender,
	}
}

func (n *SimpleNetwork[T]) Send(data T, recipient Recipient) error {
	return n.sender.Send(data, recipient)
}

func (n *SimpleNetwork[T]) Next(ctx context.Context) (T, error) {
	return n.receiver.Next(ctx)
}

func (n *SimpleNetwork[T]) Sender() Sender[T] {
	return n.sender
}

func (n *SimpleNetwork[T]) Receiver() Receiver[T] {
	return n.receiver
}

// Close releases the receiving half when it supports it. Data arriving for a closed
// network is discarded
func (n *SimpleNetwork[T]) Close() error {
	if closer, ok := n.receiver.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
