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

package common

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/btcsuite/btcd/btcutil/bech32"
)

// PeerIdBech32Prefix is the human-readable part used when encoding peer IDs
const PeerIdBech32Prefix = "peer"

var ErrInvalidPeerKey = errors.New("invalid peer public key")

// PeerId identifies a network peer. It is the Blake2b-224 hash of the peer's ed25519 public key
type PeerId Blake2b224

// NewPeerIdFromPublicKey derives the peer ID for an ed25519 public key. Keys that don't
// decode to a curve point or that are small-order points are rejected
func NewPeerIdFromPublicKey(publicKey []byte) (PeerId, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return PeerId{}, fmt.Errorf(
			"%w: bad length %d",
			ErrInvalidPeerKey,
			len(publicKey),
		)
	}
	point := &edwards25519.Point{}
	if _, err := point.SetBytes(publicKey); err != nil {
		return PeerId{}, fmt.Errorf("%w: %w", ErrInvalidPeerKey, err)
	}
	isSmallOrder := (&edwards25519.Point{}).MultByCofactor(point).
		Equal(edwards25519.NewIdentityPoint()) ==
		1
	if isSmallOrder {
		return PeerId{}, fmt.Errorf(
			"%w: small order point",
			ErrInvalidPeerKey,
		)
	}
	return PeerId(Blake2b224Hash(publicKey)), nil
}

// NewPeerIdFromString parses a bech32-encoded peer ID
func NewPeerIdFromString(peerId string) (PeerId, error) {
	hrp, data, err := bech32.Decode(peerId)
	if err != nil {
		return PeerId{}, err
	}
	if hrp != PeerIdBech32Prefix {
		return PeerId{}, fmt.Errorf(
			"unexpected peer ID prefix: %s",
			hrp,
		)
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return PeerId{}, err
	}
	if len(decoded) != Blake2b224Size {
		return PeerId{}, fmt.Errorf(
			"invalid peer ID length: got %d, expected %d",
			len(decoded),
			Blake2b224Size,
		)
	}
	return PeerId(NewBlake2b224(decoded)), nil
}

// String returns the bech32-encoded version of the peer ID
func (p PeerId) String() string {
	return Blake2b224(p).Bech32(PeerIdBech32Prefix)
}

func (p PeerId) Bytes() []byte {
	return p[:]
}

// Compare orders peer IDs by their raw bytes
func (p PeerId) Compare(other PeerId) int {
	return bytes.Compare(p[:], other[:])
}

func (p PeerId) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *PeerId) UnmarshalJSON(data []byte) error {
	var tmp string
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	tmpId, err := NewPeerIdFromString(tmp)
	if err != nil {
		return err
	}
	*p = tmpId
	return nil
}

// UnmarshalText allows peer IDs to be used directly in config files
func (p *PeerId) UnmarshalText(data []byte) error {
	tmpId, err := NewPeerIdFromString(string(data))
	if err != nil {
		return err
	}
	*p = tmpId
	return nil
}
