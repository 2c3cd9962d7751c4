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

// Package handshake implements the block announces handshake exchanged when a peer
// connects to the base protocol
package handshake

import (
	"encoding/json"
	"strings"

	"github.com/blinklabs-io/goaleph/cbor"
	"github.com/blinklabs-io/goaleph/common"
)

// Roles is a bitmask of the capabilities a peer declares about itself
type Roles uint8

const (
	RoleFull      Roles = 0b0000_0001
	RoleLight     Roles = 0b0000_0010
	RoleAuthority Roles = 0b0000_0100
)

// IsFull returns true for peers that keep the full state, which includes authorities
func (r Roles) IsFull() bool {
	return r&(RoleFull|RoleAuthority) != 0
}

// IsLight returns true for peers that declared themselves light clients
func (r Roles) IsLight() bool {
	return r&RoleLight != 0
}

// IsAuthority returns true for peers participating in block authoring
func (r Roles) IsAuthority() bool {
	return r&RoleAuthority != 0
}

func (r Roles) String() string {
	var names []string
	if r&RoleFull != 0 {
		names = append(names, "Full")
	}
	if r&RoleLight != 0 {
		names = append(names, "Light")
	}
	if r&RoleAuthority != 0 {
		names = append(names, "Authority")
	}
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, "|")
}

func (r Roles) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// Handshake is the block announces handshake sent by each side of a connection
type Handshake struct {
	cbor.StructAsArray
	cbor.DecodeStoreCbor
	Roles       Roles
	BestNumber  uint32
	BestHash    common.Blake2b256
	GenesisHash common.Blake2b256
}

// New returns a handshake for a node with the specified roles and best block
func New(
	roles Roles,
	bestNumber uint32,
	bestHash common.Blake2b256,
	genesisHash common.Blake2b256,
) *Handshake {
	return &Handshake{
		Roles:       roles,
		BestNumber:  bestNumber,
		BestHash:    bestHash,
		GenesisHash: genesisHash,
	}
}

// NewHandshakeFromCbor decodes a handshake. Any bytes left over after the handshake are
// treated as a decode failure
func NewHandshakeFromCbor(data []byte) (*Handshake, error) {
	var h Handshake
	if err := h.UnmarshalCBOR(data); err != nil {
		return nil, err
	}
	return &h, nil
}

func (h *Handshake) UnmarshalCBOR(data []byte) error {
	return h.UnmarshalCborGeneric(data, h)
}

// Encode returns the CBOR representation of the handshake. The original bytes are returned
// for a decoded handshake
func (h *Handshake) Encode() ([]byte, error) {
	if data := h.Cbor(); data != nil {
		return data, nil
	}
	return cbor.Encode(h)
}
