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

package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	aleph "github.com/blinklabs-io/goaleph"
	"github.com/blinklabs-io/goaleph/baseprotocol"
	"github.com/blinklabs-io/goaleph/common"
	"github.com/blinklabs-io/goaleph/handshake"
	"github.com/blinklabs-io/goaleph/network"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const (
	dialInterval = 30 * time.Second
)

// Data exchanged on the data topic. Block announcements and free-form messages share it
type dataSplit = network.Split[baseprotocol.BlockInfo, string]

type node struct {
	cfg          *aleph.NetworkConfig
	privateKey   ed25519.PrivateKey
	peerId       common.PeerId
	handshake    *handshake.Handshake
	logger       *slog.Logger
	registry     *prometheus.Registry
	service      *baseprotocol.Service
	connManager  *aleph.ConnectionManager
	splitMetrics *network.SplitMetrics
	// Boot node addresses with a pending or established connection
	hostsMutex sync.Mutex
	hosts      map[string]aleph.ConnectionId
}

func newNode(
	cfg *aleph.NetworkConfig,
	privateKey ed25519.PrivateKey,
	roles handshake.Roles,
	logger *slog.Logger,
) (*node, error) {
	genesisHash, err := cfg.Genesis()
	if err != nil {
		return nil, err
	}
	peerId, err := common.NewPeerIdFromPublicKey(
		privateKey.Public().(ed25519.PublicKey),
	)
	if err != nil {
		return nil, err
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := baseprotocol.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	splitMetrics, err := network.NewSplitMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	n := &node{
		cfg:          cfg,
		privateKey:   privateKey,
		peerId:       peerId,
		handshake:    handshake.New(roles, 0, genesisHash, genesisHash),
		logger:       logger,
		registry:     registry,
		splitMetrics: splitMetrics,
		hosts:        make(map[string]aleph.ConnectionId),
	}
	n.service = baseprotocol.NewService(
		genesisHash,
		cfg.BaseProtocolConfig(),
		baseprotocol.WithLogger(logger),
		baseprotocol.WithMetrics(metrics),
	)
	n.connManager = aleph.NewConnectionManager(
		aleph.ConnectionManagerConfig{
			Service:        n.service,
			Logger:         logger,
			ConnClosedFunc: n.connClosed,
		},
	)
	n.connManager.AddHostsFromNetworkConfig(cfg)
	return n, nil
}

func (n *node) run(ctx context.Context) error {
	var listenConfig net.ListenConfig
	listener, err := listenConfig.Listen(ctx, "tcp", n.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to open listening socket: %w", err)
	}
	n.logger.Info(
		"starting node",
		"peer_id", n.peerId.String(),
		"roles", n.handshake.Roles.String(),
		"listen_address", listener.Addr().String(),
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return n.service.Run(ctx)
	})
	g.Go(func() error {
		return n.acceptLoop(ctx, listener)
	})
	g.Go(func() error {
		<-ctx.Done()
		listener.Close()
		n.connManager.CloseAll()
		return nil
	})
	g.Go(func() error {
		return n.dialLoop(ctx)
	})
	g.Go(func() error {
		return n.eventLoop(ctx)
	})
	if n.cfg.MetricsAddress != "" {
		g.Go(func() error {
			return n.serveHttp(ctx)
		})
	}
	return g.Wait()
}

func (n *node) connectionOptions(inbound bool) []aleph.ConnectionOptionFunc {
	return []aleph.ConnectionOptionFunc{
		aleph.WithPrivateKey(n.privateKey),
		aleph.WithHandshake(n.handshake),
		aleph.WithServer(inbound),
		aleph.WithLogger(n.logger),
		aleph.WithTopics(aleph.TopicData),
		aleph.WithDelayMuxerStart(true),
	}
}

func (n *node) acceptLoop(ctx context.Context, listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			n.logger.Warn(
				"failed to accept connection",
				"component", "network",
				"error", err,
			)
			continue
		}
		go func() {
			c, err := aleph.NewConnection(
				append(n.connectionOptions(true), aleph.WithConnection(conn))...,
			)
			if err != nil {
				n.logger.Debug(
					"failed to set up inbound connection",
					"component", "network",
					"remote_address", conn.RemoteAddr().String(),
					"error", err,
				)
				return
			}
			if err := n.admit(ctx, c); err != nil {
				n.logger.Debug(
					"inbound peer not admitted",
					"component", "network",
					"peer_id", c.RemotePeerId().String(),
					"error", err,
				)
			}
		}()
	}
}

func (n *node) dialLoop(ctx context.Context) error {
	ticker := time.NewTicker(dialInterval)
	defer ticker.Stop()
	for {
		for _, host := range n.connManager.Hosts() {
			if !n.reserveHost(host.Address) {
				continue
			}
			go n.dial(ctx, host)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (n *node) dial(ctx context.Context, host aleph.ConnectionManagerHost) {
	err := func() error {
		c, err := aleph.NewConnection(n.connectionOptions(false)...)
		if err != nil {
			return err
		}
		if err := c.Dial(ctx, "tcp", host.Address); err != nil {
			return err
		}
		if host.PeerId != nil && *host.PeerId != c.RemotePeerId() {
			c.Close()
			return fmt.Errorf(
				"unexpected peer ID: got %s, expected %s",
				c.RemotePeerId().String(),
				host.PeerId.String(),
			)
		}
		n.setHostConnection(host.Address, c.Id())
		return n.admit(ctx, c)
	}()
	if err != nil {
		n.releaseHost(host.Address)
		if !errors.Is(err, context.Canceled) {
			n.logger.Warn(
				"failed to connect to boot node",
				"component", "network",
				"address", host.Address,
				"error", err,
			)
		}
	}
}

// admit asks for admission of the connection and starts processing its data topic
func (n *node) admit(ctx context.Context, c *aleph.Connection) error {
	dataNetwork, err := aleph.NewConnectionNetwork[dataSplit](c, aleph.TopicData)
	if err != nil {
		c.Close()
		return err
	}
	if err := n.connManager.AddConnection(ctx, c); err != nil {
		return err
	}
	peerId := c.RemotePeerId().String()
	announcements, messages := network.SplitNetwork[baseprotocol.BlockInfo, string](
		dataNetwork,
		"block-announcements",
		"messages",
		network.WithSplitLogger(n.logger),
		network.WithSplitMetrics(n.splitMetrics),
	)
	bestBlock := baseprotocol.BlockInfo{
		Hash:   n.handshake.BestHash,
		Number: n.handshake.BestNumber,
	}
	if err := announcements.Send(bestBlock, network.Everyone()); err != nil {
		n.logger.Debug(
			"failed to announce best block",
			"component", "network",
			"peer_id", peerId,
			"error", err,
		)
	}
	go consume[baseprotocol.BlockInfo](ctx, announcements, func(block baseprotocol.BlockInfo) {
		n.logger.Debug(
			"received block announcement",
			"component", "network",
			"peer_id", peerId,
			"hash", block.Hash.String(),
			"number", block.Number,
		)
	})
	go consume[string](ctx, messages, func(msg string) {
		n.logger.Info(
			"received message",
			"component", "network",
			"peer_id", peerId,
			"message", msg,
		)
	})
	return nil
}

// consume passes received data to handleFunc until the network ends
func consume[T any](ctx context.Context, receiver network.Receiver[T], handleFunc func(T)) {
	for {
		data, err := receiver.Next(ctx)
		if err != nil {
			return
		}
		handleFunc(data)
	}
}

func (n *node) eventLoop(ctx context.Context) error {
	events, err := n.service.EventStream(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	for evt := range events {
		n.logger.Debug(
			"peer event",
			"component", "network",
			"event", evt.Type.String(),
			"peer_id", evt.PeerId.String(),
		)
	}
	return nil
}

func (n *node) connClosed(connId aleph.ConnectionId, err error) {
	n.hostsMutex.Lock()
	defer n.hostsMutex.Unlock()
	for address, hostConnId := range n.hosts {
		if hostConnId == connId {
			delete(n.hosts, address)
		}
	}
}

// reserveHost marks a boot node as being dialed. It returns false when the boot node is
// already being dialed or connected
func (n *node) reserveHost(address string) bool {
	n.hostsMutex.Lock()
	defer n.hostsMutex.Unlock()
	if _, ok := n.hosts[address]; ok {
		return false
	}
	n.hosts[address] = 0
	return true
}

func (n *node) setHostConnection(address string, connId aleph.ConnectionId) {
	n.hostsMutex.Lock()
	defer n.hostsMutex.Unlock()
	n.hosts[address] = connId
}

func (n *node) releaseHost(address string) {
	n.hostsMutex.Lock()
	defer n.hostsMutex.Unlock()
	delete(n.hosts, address)
}
