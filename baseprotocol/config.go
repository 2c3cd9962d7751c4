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
	"github.com/blinklabs-io/goaleph/common"
)

// NetworkConfig holds the peer set settings the slot limits are derived from
type NetworkConfig struct {
	ReservedNodes []common.PeerId
	// Total number of full peers, both inbound and outbound
	DefaultPeersSetNumFull uint32
	// Inbound peers of any role
	InPeers uint32
	// Outbound peers. These are always full peers
	OutPeers uint32
}

// SlotLimits are the maximum number of non-reserved peers per slot category
type SlotLimits struct {
	MaxFullInbound  int `json:"maxFullInbound"`
	MaxFullOutbound int `json:"maxFullOutbound"`
	MaxLight        int `json:"maxLight"`
}

// NewSlotLimits derives slot limits from the network config. Other components depend on
// this exact derivation:
//
//	max_full_outbound = out_peers
//	max_full_inbound  = max(default_peers_set_num_full - max_full_outbound, 0)
//	max_light         = max(in_peers - max_full_inbound, 0)
func NewSlotLimits(cfg NetworkConfig) SlotLimits {
	maxFullOutbound := int(cfg.OutPeers)
	maxFullInbound := saturatingSub(int(cfg.DefaultPeersSetNumFull), maxFullOutbound)
	maxLight := saturatingSub(int(cfg.InPeers), maxFullInbound)
	return SlotLimits{
		MaxFullInbound:  maxFullInbound,
		MaxFullOutbound: maxFullOutbound,
		MaxLight:        maxLight,
	}
}

// SlotCounters are the number of admitted non-reserved peers per slot category
type SlotCounters struct {
	FullInbound  int `json:"fullInbound"`
	FullOutbound int `json:"fullOutbound"`
	Light        int `json:"light"`
}

// SlotCategory identifies one of the slot counters
type SlotCategory uint8

const (
	SlotCategoryNone SlotCategory = iota
	SlotCategoryFullInbound
	SlotCategoryFullOutbound
	SlotCategoryLight
)

func (c SlotCategory) String() string {
	switch c {
	case SlotCategoryFullInbound:
		return "full_inbound"
	case SlotCategoryFullOutbound:
		return "full_outbound"
	case SlotCategoryLight:
		return "light"
	default:
		return "none"
	}
}

func saturatingSub(a, b int) int {
	if a < b {
		return 0
	}
	return a - b
}
