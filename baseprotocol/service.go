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

package baseprotocol

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/blinklabs-io/goaleph/common"
)

const (
	defaultCommandBufferSize = 100
	defaultEventBufferSize   = 100
)

// EventType identifies the kind of peer event
type EventType uint8

const (
	EventTypePeerConnected EventType = iota + 1
	EventTypePeerDisconnected
)

func (e EventType) String() string {
	switch e {
	case EventTypePeerConnected:
		return "PeerConnected"
	case EventTypePeerDisconnected:
		return "PeerDisconnected"
	default:
		return "Unknown"
	}
}

// Event is published to subscribers after a peer is admitted or removed
type Event struct {
	Type    EventType
	PeerId  common.PeerId
	Inbound bool
}

// BlockInfo identifies a block
type BlockInfo struct {
	Hash   common.Blake2b256
	Number uint32
}

type connectCommand struct {
	ctx           context.Context
	peerId        common.PeerId
	handshakeData []byte
	inbound       bool
	respChan      chan error
}

type disconnectCommand struct {
	peerId   common.PeerId
	respChan chan error
}

type peersInfoCommand struct {
	respChan chan []PeerInfo
}

type countersCommand struct {
	respChan chan SlotCounters
}

type bestSeenBlockCommand struct {
	respChan chan *BlockInfo
}

type statusCommand struct {
	respChan chan error
}

type eventStreamCommand struct {
	respChan chan (<-chan Event)
}

// Service owns a Handler and serializes all access to it through a command loop. It needs
// to be running (see Run) for the client methods to make progress
type Service struct {
	handler           *Handler
	handlerOptions    []HandlerOptionFunc
	logger            *slog.Logger
	metrics           *Metrics
	commandChan       chan any
	stopChan          chan struct{}
	doneChan          chan struct{}
	onceStop          sync.Once
	running           atomic.Bool
	subscribers       []chan Event
	eventBufferSize   int
	commandBufferSize int
}

// ServiceOptionFunc is a type that represents functions that modify the Service config
type ServiceOptionFunc func(*Service)

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) ServiceOptionFunc {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics specifies the metrics to report slot usage to
func WithMetrics(metrics *Metrics) ServiceOptionFunc {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// WithHandlerOptions specifies options passed through to the underlying Handler
func WithHandlerOptions(options ...HandlerOptionFunc) ServiceOptionFunc {
	return func(s *Service) {
		s.handlerOptions = append(s.handlerOptions, options...)
	}
}

// WithEventBufferSize specifies the buffer size of each event stream. Events for a
// subscriber with a full buffer are dropped
func WithEventBufferSize(size int) ServiceOptionFunc {
	return func(s *Service) {
		s.eventBufferSize = size
	}
}

// WithCommandBufferSize specifies the size of the command queue
func WithCommandBufferSize(size int) ServiceOptionFunc {
	return func(s *Service) {
		s.commandBufferSize = size
	}
}

// NewService returns a new base protocol Service
func NewService(
	genesisHash common.Blake2b256,
	cfg NetworkConfig,
	options ...ServiceOptionFunc,
) *Service {
	s := &Service{
		stopChan:          make(chan struct{}),
		doneChan:          make(chan struct{}),
		eventBufferSize:   defaultEventBufferSize,
		commandBufferSize: defaultCommandBufferSize,
	}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.commandChan = make(chan any, s.commandBufferSize)
	handlerOptions := append(
		[]HandlerOptionFunc{
			WithSlotUnderflowFunc(s.slotUnderflow),
		},
		s.handlerOptions...,
	)
	s.handler = NewHandler(genesisHash, cfg, handlerOptions...)
	s.metrics.setLimits(s.handler.Limits())
	s.metrics.setCounters(s.handler.Counters())
	return s
}

// Run processes commands until the context is cancelled or Stop is called. A Service can
// only be run once
func (s *Service) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrServiceAlreadyRun
	}
	defer s.shutdown()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopChan:
			return nil
		case cmd := <-s.commandChan:
			s.handleCommand(cmd)
		}
	}
}

// IsReserved returns whether the peer is a reserved node. The reserved set never changes, so
// this doesn't go through the command loop
func (s *Service) IsReserved(peerId common.PeerId) bool {
	return s.handler.IsReserved(peerId)
}

// Limits returns the slot limits, which are fixed at creation
func (s *Service) Limits() SlotLimits {
	return s.handler.Limits()
}

// Stop causes Run to return
func (s *Service) Stop() {
	s.onceStop.Do(func() {
		close(s.stopChan)
	})
}

func (s *Service) shutdown() {
	close(s.doneChan)
	for _, subscriber := range s.subscribers {
		close(subscriber)
	}
	s.subscribers = nil
}

func (s *Service) handleCommand(cmd any) {
	switch c := cmd.(type) {
	case connectCommand:
		c.respChan <- s.handleConnect(c)
	case disconnectCommand:
		c.respChan <- s.handleDisconnect(c)
	case peersInfoCommand:
		c.respChan <- s.handler.PeersInfo()
	case countersCommand:
		c.respChan <- s.handler.Counters()
	case bestSeenBlockCommand:
		c.respChan <- nil
	case statusCommand:
		s.logger.Debug(
			"got status request, ignoring",
			"component", "network",
		)
		c.respChan <- ErrStatusNotSupported
	case eventStreamCommand:
		subscriber := make(chan Event, s.eventBufferSize)
		s.subscribers = append(s.subscribers, subscriber)
		c.respChan <- subscriber
	default:
		s.logger.Warn(
			"got unexpected service command",
			"component", "network",
			"command", cmd,
		)
	}
}

func (s *Service) handleConnect(c connectCommand) error {
	// Nobody is waiting for the outcome anymore
	if err := c.ctx.Err(); err != nil {
		return err
	}
	if err := s.handler.AttemptConnect(c.peerId, c.handshakeData, c.inbound); err != nil {
		s.metrics.reportAdmission(rejectionResult(err))
		s.logger.Debug(
			"rejected peer",
			"component", "network",
			"peer_id", c.peerId.String(),
			"inbound", c.inbound,
			"error", err,
		)
		return err
	}
	s.metrics.reportAdmission(admissionResultAccepted)
	s.metrics.setCounters(s.handler.Counters())
	s.publish(Event{
		Type:    EventTypePeerConnected,
		PeerId:  c.peerId,
		Inbound: c.inbound,
	})
	return nil
}

func (s *Service) handleDisconnect(c disconnectCommand) error {
	if err := s.handler.Disconnect(c.peerId); err != nil {
		return err
	}
	s.metrics.reportAdmission(admissionResultRemoved)
	s.metrics.setCounters(s.handler.Counters())
	s.publish(Event{
		Type:   EventTypePeerDisconnected,
		PeerId: c.peerId,
	})
	return nil
}

func (s *Service) publish(evt Event) {
	for _, subscriber := range s.subscribers {
		select {
		case subscriber <- evt:
		default:
			s.logger.Warn(
				"dropping peer event for slow subscriber",
				"component", "network",
				"event", evt.Type.String(),
				"peer_id", evt.PeerId.String(),
			)
		}
	}
}

func (s *Service) slotUnderflow(category SlotCategory, peerId common.PeerId) {
	s.logger.Warn(
		"slot counter would underflow on disconnect",
		"component", "network",
		"category", category.String(),
		"peer_id", peerId.String(),
	)
}

func (s *Service) sendCommand(ctx context.Context, cmd any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.doneChan:
		return ErrServiceStopped
	case s.commandChan <- cmd:
		return nil
	}
}

func awaitResponse[T any](ctx context.Context, s *Service, respChan chan T) (T, error) {
	var ret T
	select {
	case <-ctx.Done():
		return ret, ctx.Err()
	case <-s.doneChan:
		// The loop may have answered right before shutting down
		select {
		case ret = <-respChan:
			return ret, nil
		default:
		}
		return ret, ErrServiceStopped
	case ret = <-respChan:
		return ret, nil
	}
}

// ConnectPeer asks the Handler to admit the peer. See Handler.AttemptConnect
func (s *Service) ConnectPeer(
	ctx context.Context,
	peerId common.PeerId,
	handshakeData []byte,
	inbound bool,
) error {
	cmd := connectCommand{
		ctx:           ctx,
		peerId:        peerId,
		handshakeData: handshakeData,
		inbound:       inbound,
		respChan:      make(chan error, 1),
	}
	if err := s.sendCommand(ctx, cmd); err != nil {
		return err
	}
	resp, err := awaitResponse(ctx, s, cmd.respChan)
	if err != nil {
		if !errors.Is(err, ErrServiceStopped) {
			// The loop may still admit the peer after we gave up on it
			go s.revertConnect(cmd)
		}
		return err
	}
	return resp
}

// revertConnect disconnects a peer admitted by a connect command whose caller is gone
func (s *Service) revertConnect(cmd connectCommand) {
	select {
	case <-s.doneChan:
		return
	case err := <-cmd.respChan:
		if err != nil {
			return
		}
	}
	s.logger.Debug(
		"disconnecting peer admitted after its caller gave up",
		"component", "network",
		"peer_id", cmd.peerId.String(),
	)
	if err := s.DisconnectPeer(context.Background(), cmd.peerId); err != nil &&
		!errors.Is(err, ErrServiceStopped) {
		s.logger.Warn(
			"failed to disconnect abandoned peer",
			"component", "network",
			"peer_id", cmd.peerId.String(),
			"error", err,
		)
	}
}

// DisconnectPeer removes the peer from the Handler. See Handler.Disconnect
func (s *Service) DisconnectPeer(ctx context.Context, peerId common.PeerId) error {
	cmd := disconnectCommand{
		peerId:   peerId,
		respChan: make(chan error, 1),
	}
	if err := s.sendCommand(ctx, cmd); err != nil {
		return err
	}
	resp, err := awaitResponse(ctx, s, cmd.respChan)
	if err != nil {
		return err
	}
	return resp
}

// PeersInfo returns the connected peers
func (s *Service) PeersInfo(ctx context.Context) ([]PeerInfo, error) {
	cmd := peersInfoCommand{
		respChan: make(chan []PeerInfo, 1),
	}
	if err := s.sendCommand(ctx, cmd); err != nil {
		return nil, err
	}
	return awaitResponse(ctx, s, cmd.respChan)
}

// Counters returns the current slot usage
func (s *Service) Counters(ctx context.Context) (SlotCounters, error) {
	cmd := countersCommand{
		respChan: make(chan SlotCounters, 1),
	}
	if err := s.sendCommand(ctx, cmd); err != nil {
		return SlotCounters{}, err
	}
	return awaitResponse(ctx, s, cmd.respChan)
}

// BestSeenBlock always returns nil, as the base protocol doesn't track peer chains
func (s *Service) BestSeenBlock(ctx context.Context) (*BlockInfo, error) {
	cmd := bestSeenBlockCommand{
		respChan: make(chan *BlockInfo, 1),
	}
	if err := s.sendCommand(ctx, cmd); err != nil {
		return nil, err
	}
	return awaitResponse(ctx, s, cmd.respChan)
}

// Status always fails with ErrStatusNotSupported
func (s *Service) Status(ctx context.Context) error {
	cmd := statusCommand{
		respChan: make(chan error, 1),
	}
	if err := s.sendCommand(ctx, cmd); err != nil {
		return err
	}
	resp, err := awaitResponse(ctx, s, cmd.respChan)
	if err != nil {
		return err
	}
	return resp
}

// EventStream subscribes to peer events. The returned channel is closed when the service
// stops
func (s *Service) EventStream(ctx context.Context) (<-chan Event, error) {
	cmd := eventStreamCommand{
		respChan: make(chan (<-chan Event), 1),
	}
	if err := s.sendCommand(ctx, cmd); err != nil {
		return nil, err
	}
	return awaitResponse(ctx, s, cmd.respChan)
}
