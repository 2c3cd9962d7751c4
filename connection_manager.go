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
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/goaleph/baseprotocol"
	"github.com/blinklabs-io/goaleph/common"
)

// ConnectionManagerConnClosedFunc is a function that takes a connection ID and an optional error
type ConnectionManagerConnClosedFunc func(ConnectionId, error)

// ConnectionManagerTag represents the various tags that can be associated with a host or connection
type ConnectionManagerTag uint16

const (
	ConnectionManagerTagNone ConnectionManagerTag = iota

	ConnectionManagerTagHostBootNode

	ConnectionManagerTagInbound
	ConnectionManagerTagOutbound
	ConnectionManagerTagReserved
)

func (c ConnectionManagerTag) String() string {
	tmp := map[ConnectionManagerTag]string{
		ConnectionManagerTagHostBootNode: "HostBootNode",
		ConnectionManagerTagInbound:      "Inbound",
		ConnectionManagerTagOutbound:     "Outbound",
		ConnectionManagerTagReserved:     "Reserved",
	}
	ret, ok := tmp[c]
	if !ok {
		return "Unknown"
	}
	return ret
}

// ConnectionManager admits connections through the base protocol Service and keeps track of
// the admitted ones
type ConnectionManager struct {
	config           ConnectionManagerConfig
	hosts            []ConnectionManagerHost
	connections      map[ConnectionId]*ConnectionManagerConnection
	connectionsMutex sync.Mutex
}

type ConnectionManagerConfig struct {
	Service        *baseprotocol.Service
	Logger         *slog.Logger
	ConnClosedFunc ConnectionManagerConnClosedFunc
}

type ConnectionManagerHost struct {
	Address string
	PeerId  *common.PeerId
	Tags    map[ConnectionManagerTag]bool
}

func NewConnectionManager(cfg ConnectionManagerConfig) *ConnectionManager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ConnectionManager{
		config:      cfg,
		connections: make(map[ConnectionId]*ConnectionManagerConnection),
	}
}

func (c *ConnectionManager) AddHost(
	address string,
	peerId *common.PeerId,
	tags ...ConnectionManagerTag,
) {
	tmpTags := map[ConnectionManagerTag]bool{}
	for _, tag := range tags {
		tmpTags[tag] = true
	}
	c.hosts = append(
		c.hosts,
		ConnectionManagerHost{
			Address: address,
			PeerId:  peerId,
			Tags:    tmpTags,
		},
	)
}

// AddHostsFromNetworkConfig adds the boot nodes from a network config
func (c *ConnectionManager) AddHostsFromNetworkConfig(cfg *NetworkConfig) {
	for _, bootNode := range cfg.BootNodes {
		c.AddHost(bootNode.Address, bootNode.PeerId, ConnectionManagerTagHostBootNode)
	}
}

// Hosts returns the known hosts
func (c *ConnectionManager) Hosts() []ConnectionManagerHost {
	return c.hosts
}

// AddConnection asks the Service to admit the remote peer of the connection. A rejected
// connection is closed and the rejection error returned. An admitted connection is tracked
// until it closes, at which point the peer is disconnected and the configured
// ConnClosedFunc is called
func (c *ConnectionManager) AddConnection(
	ctx context.Context,
	conn *Connection,
	tags ...ConnectionManagerTag,
) error {
	connId := conn.Id()
	peerId := conn.RemotePeerId()
	inbound := conn.Inbound()
	if err := c.config.Service.ConnectPeer(ctx, peerId, conn.RemoteHandshake(), inbound); err != nil {
		conn.Close()
		return err
	}
	tmpTags := map[ConnectionManagerTag]bool{}
	for _, tag := range tags {
		tmpTags[tag] = true
	}
	if inbound {
		tmpTags[ConnectionManagerTagInbound] = true
	} else {
		tmpTags[ConnectionManagerTagOutbound] = true
	}
	if c.config.Service.IsReserved(peerId) {
		tmpTags[ConnectionManagerTagReserved] = true
	}
	c.connectionsMutex.Lock()
	c.connections[connId] = &ConnectionManagerConnection{
		Conn: conn,
		Tags: tmpTags,
	}
	c.connectionsMutex.Unlock()
	// Connections set up with a delayed muxer start begin processing topics once admitted
	conn.Start()
	c.config.Logger.Info(
		"peer connected",
		"component", "network",
		"connection_id", connId,
		"peer_id", peerId.String(),
		"inbound", inbound,
	)
	go func() {
		// The channel yields the first error, or is closed without one on a local close
		err := <-conn.ErrorChan()
		conn.Close()
		c.RemoveConnection(connId)
		if disconnectErr := c.config.Service.DisconnectPeer(context.Background(), peerId); disconnectErr != nil &&
			!errors.Is(disconnectErr, baseprotocol.ErrServiceStopped) {
			c.config.Logger.Warn(
				"failed to disconnect peer",
				"component", "network",
				"connection_id", connId,
				"peer_id", peerId.String(),
				"error", disconnectErr,
			)
		}
		c.config.Logger.Info(
			"peer disconnected",
			"component", "network",
			"connection_id", connId,
			"peer_id", peerId.String(),
			"error", err,
		)
		// Call configured connection closed callback func
		if c.config.ConnClosedFunc != nil {
			c.config.ConnClosedFunc(connId, err)
		}
	}()
	return nil
}

func (c *ConnectionManager) RemoveConnection(connId ConnectionId) {
	c.connectionsMutex.Lock()
	delete(c.connections, connId)
	c.connectionsMutex.Unlock()
}

func (c *ConnectionManager) GetConnectionById(connId ConnectionId) *ConnectionManagerConnection {
	c.connectionsMutex.Lock()
	defer c.connectionsMutex.Unlock()
	return c.connections[connId]
}

func (c *ConnectionManager) GetConnectionByPeerId(peerId common.PeerId) *ConnectionManagerConnection {
	c.connectionsMutex.Lock()
	defer c.connectionsMutex.Unlock()
	for _, conn := range c.connections {
		if conn.Conn.RemotePeerId() == peerId {
			return conn
		}
	}
	return nil
}

func (c *ConnectionManager) GetConnectionsByTags(tags ...ConnectionManagerTag) []*ConnectionManagerConnection {
	var ret []*ConnectionManagerConnection
	c.connectionsMutex.Lock()
	for _, conn := range c.connections {
		skipConn := false
		for _, tag := range tags {
			if _, ok := conn.Tags[tag]; !ok {
				skipConn = true
				break
			}
		}
		if !skipConn {
			ret = append(ret, conn)
		}
	}
	c.connectionsMutex.Unlock()
	return ret
}

// CloseAll closes all tracked connections
func (c *ConnectionManager) CloseAll() {
	c.connectionsMutex.Lock()
	conns := make([]*Connection, 0, len(c.connections))
	for _, conn := range c.connections {
		conns = append(conns, conn.Conn)
	}
	c.connectionsMutex.Unlock()
	for _, conn := range conns {
		conn.Close()
	}
}

type ConnectionManagerConnection struct {
	Conn *Connection
	Tags map[ConnectionManagerTag]bool
}

func (c *ConnectionManagerConnection) AddTags(tags ...ConnectionManagerTag) {
	for _, tag := range tags {
		c.Tags[tag] = true
	}
}

func (c *ConnectionManagerConnection) RemoveTags(tags ...ConnectionManagerTag) {
	for _, tag := range tags {
		delete(c.Tags, tag)
	}
}
