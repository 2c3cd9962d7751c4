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

package baseprotocol_test

import (
	"testing"

	"github.com/blinklabs-io/goaleph/baseprotocol"
	"github.com/stretchr/testify/assert"
)

func TestNewSlotLimits(t *testing.T) {
	testDefs := []struct {
		name     string
		cfg      baseprotocol.NetworkConfig
		expected baseprotocol.SlotLimits
	}{
		{
			name: "one slot each",
			cfg: baseprotocol.NetworkConfig{
				DefaultPeersSetNumFull: 2,
				InPeers:                2,
				OutPeers:               1,
			},
			expected: baseprotocol.SlotLimits{
				MaxFullInbound:  1,
				MaxFullOutbound: 1,
				MaxLight:        1,
			},
		},
		{
			name: "defaults",
			cfg: baseprotocol.NetworkConfig{
				DefaultPeersSetNumFull: 40,
				InPeers:                32,
				OutPeers:               8,
			},
			expected: baseprotocol.SlotLimits{
				MaxFullInbound:  32,
				MaxFullOutbound: 8,
				MaxLight:        0,
			},
		},
		{
			name: "outbound exceeds full",
			cfg: baseprotocol.NetworkConfig{
				DefaultPeersSetNumFull: 3,
				InPeers:                10,
				OutPeers:               5,
			},
			expected: baseprotocol.SlotLimits{
				MaxFullInbound:  0,
				MaxFullOutbound: 5,
				MaxLight:        10,
			},
		},
		{
			name:     "zero",
			cfg:      baseprotocol.NetworkConfig{},
			expected: baseprotocol.SlotLimits{},
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			assert.Equal(t, testDef.expected, baseprotocol.NewSlotLimits(testDef.cfg))
		})
	}
}

func TestSlotCategoryString(t *testing.T) {
	testDefs := map[baseprotocol.SlotCategory]string{
		baseprotocol.SlotCategoryFullInbound:  "full_inbound",
		baseprotocol.SlotCategoryFullOutbound: "full_outbound",
		baseprotocol.SlotCategoryLight:        "light",
		baseprotocol.SlotCategoryNone:         "none",
	}
	for category, expected := range testDefs {
		assert.Equal(t, expected, category.String())
	}
}
