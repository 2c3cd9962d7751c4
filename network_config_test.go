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

package aleph_test

import (
	"strings"
	"testing"

	aleph "github.com/blinklabs-io/goaleph"
	"github.com/blinklabs-io/goaleph/baseprotocol"
	"github.com/blinklabs-io/goaleph/common"
	"github.com/blinklabs-io/goaleph/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkConfigFromReader(t *testing.T) {
	genesisHash := test.GenesisHash(testNetwork)
	reserved := test.PeerId(1)
	bootPeer := test.PeerId(2)
	yamlData := `
genesisHash: ` + genesisHash.String() + `
listenAddress: 127.0.0.1:30334
metricsAddress: 127.0.0.1:9615
reservedNodes:
  - ` + reserved.String() + `
bootNodes:
  - address: 10.0.0.1:30333
    peerId: ` + bootPeer.String() + `
  - address: 10.0.0.2:30333
defaultPeersSetNumFull: 2
inPeers: 2
outPeers: 1
`
	cfg, err := aleph.NewNetworkConfigFromReader(strings.NewReader(yamlData))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:30334", cfg.ListenAddress)
	assert.Equal(t, "127.0.0.1:9615", cfg.MetricsAddress)
	assert.Equal(t, []common.PeerId{reserved}, cfg.ReservedNodes)
	require.Len(t, cfg.BootNodes, 2)
	assert.Equal(t, "10.0.0.1:30333", cfg.BootNodes[0].Address)
	require.NotNil(t, cfg.BootNodes[0].PeerId)
	assert.Equal(t, bootPeer, *cfg.BootNodes[0].PeerId)
	assert.Nil(t, cfg.BootNodes[1].PeerId)
	genesis, err := cfg.Genesis()
	require.NoError(t, err)
	assert.Equal(t, genesisHash, genesis)
	baseCfg := cfg.BaseProtocolConfig()
	assert.Equal(
		t,
		baseprotocol.SlotLimits{MaxFullInbound: 1, MaxFullOutbound: 1, MaxLight: 1},
		baseprotocol.NewSlotLimits(baseCfg),
	)
	assert.Equal(t, []common.PeerId{reserved}, baseCfg.ReservedNodes)
}

func TestNetworkConfigDefaults(t *testing.T) {
	cfg, err := aleph.NewNetworkConfigFromReader(strings.NewReader("{}"))
	require.NoError(t, err)
	assert.Equal(t, aleph.DefaultListenAddress, cfg.ListenAddress)
	assert.Equal(t, uint32(aleph.DefaultInPeers), cfg.InPeers)
	assert.Equal(t, uint32(aleph.DefaultOutPeers), cfg.OutPeers)
	assert.Equal(t, uint32(aleph.DefaultDefaultPeersSetNumFull), cfg.DefaultPeersSetNumFull)
	_, err = cfg.Genesis()
	assert.ErrorIs(t, err, aleph.ErrMissingGenesisHash)
}

func TestNetworkConfigErrors(t *testing.T) {
	testDefs := []struct {
		name     string
		yamlData string
	}{
		{
			name:     "bad reserved peer",
			yamlData: "reservedNodes: [notapeer]",
		},
		{
			name:     "bad yaml",
			yamlData: "inPeers: [",
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			_, err := aleph.NewNetworkConfigFromReader(strings.NewReader(testDef.yamlData))
			assert.Error(t, err)
		})
	}
	cfg := &aleph.NetworkConfig{GenesisHash: "abcd"}
	_, err := cfg.Genesis()
	assert.Error(t, err)
}
