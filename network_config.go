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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/blinklabs-io/goaleph/baseprotocol"
	"github.com/blinklabs-io/goaleph/common"
	"gopkg.in/yaml.v3"
)

// Defaults applied to settings missing from a network config file
const (
	DefaultListenAddress          = ":30333"
	DefaultInPeers                = 32
	DefaultOutPeers               = 8
	DefaultDefaultPeersSetNumFull = DefaultInPeers + DefaultOutPeers
)

var ErrMissingGenesisHash = errors.New("missing genesis hash")

// NetworkConfig represents a node network config file
type NetworkConfig struct {
	GenesisHash            string                  `yaml:"genesisHash"`
	ListenAddress          string                  `yaml:"listenAddress"`
	MetricsAddress         string                  `yaml:"metricsAddress"`
	ReservedNodes          []common.PeerId         `yaml:"reservedNodes"`
	BootNodes              []NetworkConfigBootNode `yaml:"bootNodes"`
	DefaultPeersSetNumFull uint32                  `yaml:"defaultPeersSetNumFull"`
	InPeers                uint32                  `yaml:"inPeers"`
	OutPeers               uint32                  `yaml:"outPeers"`
}

type NetworkConfigBootNode struct {
	Address string `yaml:"address"`
	// Expected peer ID of the boot node, if known
	PeerId *common.PeerId `yaml:"peerId"`
}

// NewNetworkConfig returns a network config with the default settings
func NewNetworkConfig() *NetworkConfig {
	return &NetworkConfig{
		ListenAddress:          DefaultListenAddress,
		DefaultPeersSetNumFull: DefaultDefaultPeersSetNumFull,
		InPeers:                DefaultInPeers,
		OutPeers:               DefaultOutPeers,
	}
}

func NewNetworkConfigFromFile(path string) (*NetworkConfig, error) {
	dataFile, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer dataFile.Close()
	return NewNetworkConfigFromReader(dataFile)
}

func NewNetworkConfigFromReader(r io.Reader) (*NetworkConfig, error) {
	c := NewNetworkConfig()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Genesis returns the parsed genesis hash
func (c *NetworkConfig) Genesis() (common.Blake2b256, error) {
	if c.GenesisHash == "" {
		return common.Blake2b256{}, ErrMissingGenesisHash
	}
	genesisHash, err := common.NewBlake2b256FromHex(c.GenesisHash)
	if err != nil {
		return common.Blake2b256{}, fmt.Errorf("invalid genesis hash: %w", err)
	}
	return genesisHash, nil
}

// BaseProtocolConfig returns the settings used by the base protocol slot accounting
func (c *NetworkConfig) BaseProtocolConfig() baseprotocol.NetworkConfig {
	return baseprotocol.NetworkConfig{
		ReservedNodes:          c.ReservedNodes,
		DefaultPeersSetNumFull: c.DefaultPeersSetNumFull,
		InPeers:                c.InPeers,
		OutPeers:               c.OutPeers,
	}
}
