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

package test

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/blinklabs-io/goaleph/common"
	"github.com/blinklabs-io/goaleph/handshake"
)

// DecodeHexString is a helper function for tests that decodes hex strings. It doesn't return
// an error value, which makes it usable inline.
func DecodeHexString(hexData string) []byte {
	// Strip off any leading/trailing whitespace in hex string
	hexData = strings.TrimSpace(hexData)
	decoded, err := hex.DecodeString(hexData)
	if err != nil {
		panic(fmt.Sprintf("error decoding hex: %s", err))
	}
	return decoded
}

// PeerKey returns a deterministic ed25519 key for the given index
func PeerKey(idx int) ed25519.PrivateKey {
	seed := sha256.Sum256(fmt.Appendf(nil, "test peer %d", idx))
	return ed25519.NewKeyFromSeed(seed[:])
}

// PeerId returns the peer ID of the key returned by PeerKey for the same index
func PeerId(idx int) common.PeerId {
	peerId, err := common.NewPeerIdFromPublicKey(
		PeerKey(idx).Public().(ed25519.PublicKey),
	)
	if err != nil {
		panic(fmt.Sprintf("error deriving peer ID: %s", err))
	}
	return peerId
}

// GenesisHash returns a deterministic genesis hash for the given network name
func GenesisHash(name string) common.Blake2b256 {
	return common.Blake2b256Hash([]byte(name))
}

// HandshakeBytes returns an encoded handshake, panicking on failure
func HandshakeBytes(roles handshake.Roles, genesisHash common.Blake2b256) []byte {
	data, err := handshake.New(roles, 0, common.Blake2b256{}, genesisHash).Encode()
	if err != nil {
		panic(fmt.Sprintf("error encoding handshake: %s", err))
	}
	return data
}
