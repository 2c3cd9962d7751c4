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

// Package baseprotocol implements peer admission and slot accounting for the base
// network protocol
package baseprotocol

import (
	"fmt"
	"slices"

	"github.com/blinklabs-io/goaleph/common"
	"github.com/blinklabs-io/goaleph/handshake"
)

// SlotUnderflowFunc is called when a disconnect would have pushed a slot counter below zero
type SlotUnderflowFunc func(SlotCategory, common.PeerId)

type peerRecord struct {
	roles   handshake.Roles
	inbound bool
}

// PeerInfo describes a connected peer. The best block fields are kept for compatibility
// with older consumers of the peer list and are always zero
type PeerInfo struct {
	PeerId     common.PeerId     `json:"peerId"`
	Roles      handshake.Roles   `json:"roles"`
	BestHash   common.Blake2b256 `json:"bestHash"`
	BestNumber uint32            `json:"bestNumber"`
}

// PeerSnapshot is a connected peer and its declared roles
type PeerSnapshot struct {
	PeerId common.PeerId
	Roles  handshake.Roles
}

// Handler tracks connected peers and enforces the slot limits for each peer category.
// It is not safe for concurrent use. Callers serialize access, which the Service does
type Handler struct {
	reservedNodes map[common.PeerId]struct{}
	peers         map[common.PeerId]peerRecord
	// The counters and limits ignore peers in reservedNodes
	counters      SlotCounters
	limits        SlotLimits
	genesisHash   common.Blake2b256
	underflowFunc SlotUnderflowFunc
}

// HandlerOptionFunc is a type that represents functions that modify the Handler config
type HandlerOptionFunc func(*Handler)

// WithSlotLimits overrides the limits derived from the network config
func WithSlotLimits(limits SlotLimits) HandlerOptionFunc {
	return func(h *Handler) {
		h.limits = limits
	}
}

// WithSlotUnderflowFunc specifies a callback for slot counter underflows
func WithSlotUnderflowFunc(underflowFunc SlotUnderflowFunc) HandlerOptionFunc {
	return func(h *Handler) {
		h.underflowFunc = underflowFunc
	}
}

// NewHandler returns a new Handler for the network with the specified genesis hash
func NewHandler(
	genesisHash common.Blake2b256,
	cfg NetworkConfig,
	options ...HandlerOptionFunc,
) *Handler {
	h := &Handler{
		reservedNodes: make(map[common.PeerId]struct{}, len(cfg.ReservedNodes)),
		peers:         make(map[common.PeerId]peerRecord),
		limits:        NewSlotLimits(cfg),
		genesisHash:   genesisHash,
	}
	for _, peerId := range cfg.ReservedNodes {
		h.reservedNodes[peerId] = struct{}{}
	}
	for _, option := range options {
		option(h)
	}
	return h
}

// Limits returns the configured slot limits
func (h *Handler) Limits() SlotLimits {
	return h.limits
}

// Counters returns the current slot usage
func (h *Handler) Counters() SlotCounters {
	return h.counters
}

// IsReserved returns whether the peer is exempt from slot accounting
func (h *Handler) IsReserved(peerId common.PeerId) bool {
	_, ok := h.reservedNodes[peerId]
	return ok
}

// IsConnected returns whether the peer is currently admitted
func (h *Handler) IsConnected(peerId common.PeerId) bool {
	_, ok := h.peers[peerId]
	return ok
}

// AttemptConnect decides whether a connection from or to the peer may proceed. The peer
// is recorded and a slot is taken only when nil is returned
func (h *Handler) AttemptConnect(
	peerId common.PeerId,
	handshakeData []byte,
	inbound bool,
) error {
	roles, err := h.verifyConnection(peerId, handshakeData, inbound)
	if err != nil {
		return err
	}
	h.peers[peerId] = peerRecord{
		roles:   roles,
		inbound: inbound,
	}
	if h.IsReserved(peerId) {
		return nil
	}
	switch slotCategory(roles, inbound) {
	case SlotCategoryFullInbound:
		h.counters.FullInbound++
	case SlotCategoryFullOutbound:
		h.counters.FullOutbound++
	case SlotCategoryLight:
		h.counters.Light++
	}
	return nil
}

func (h *Handler) verifyConnection(
	peerId common.PeerId,
	handshakeData []byte,
	inbound bool,
) (handshake.Roles, error) {
	hs, err := handshake.NewHandshakeFromCbor(handshakeData)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBadHandshake, err)
	}
	if hs.GenesisHash != h.genesisHash {
		return 0, ErrWrongNetwork
	}
	if h.IsConnected(peerId) {
		return 0, ErrAlreadyConnected
	}
	if h.IsReserved(peerId) {
		return hs.Roles, nil
	}
	// Full peers are limited per direction, light peers share one limit regardless of
	// direction
	if inbound && hs.Roles.IsFull() &&
		h.counters.FullInbound >= h.limits.MaxFullInbound {
		return 0, ErrFullInboundSlotsExhausted
	}
	if !inbound && hs.Roles.IsFull() &&
		h.counters.FullOutbound >= h.limits.MaxFullOutbound {
		return 0, ErrFullOutboundSlotsExhausted
	}
	if hs.Roles.IsLight() && h.counters.Light >= h.limits.MaxLight {
		return 0, ErrLightSlotsExhausted
	}
	return hs.Roles, nil
}

// Disconnect removes the peer and frees its slot
func (h *Handler) Disconnect(peerId common.PeerId) error {
	record, ok := h.peers[peerId]
	if !ok {
		return ErrNotConnected
	}
	delete(h.peers, peerId)
	if h.IsReserved(peerId) {
		return nil
	}
	// The category comes from the stored record, not from anything the peer sends later
	category := slotCategory(record.roles, record.inbound)
	var counter *int
	switch category {
	case SlotCategoryFullInbound:
		counter = &h.counters.FullInbound
	case SlotCategoryFullOutbound:
		counter = &h.counters.FullOutbound
	case SlotCategoryLight:
		counter = &h.counters.Light
	default:
		return nil
	}
	if *counter == 0 {
		if h.underflowFunc != nil {
			h.underflowFunc(category, peerId)
		}
		return nil
	}
	*counter--
	return nil
}

// Snapshot returns the connected peers ordered by peer ID
func (h *Handler) Snapshot() []PeerSnapshot {
	ret := make([]PeerSnapshot, 0, len(h.peers))
	for peerId, record := range h.peers {
		ret = append(
			ret,
			PeerSnapshot{
				PeerId: peerId,
				Roles:  record.roles,
			},
		)
	}
	slices.SortFunc(ret, func(a, b PeerSnapshot) int {
		return a.PeerId.Compare(b.PeerId)
	})
	return ret
}

// PeersInfo returns the connected peers ordered by peer ID
func (h *Handler) PeersInfo() []PeerInfo {
	snapshot := h.Snapshot()
	ret := make([]PeerInfo, 0, len(snapshot))
	for _, peer := range snapshot {
		ret = append(
			ret,
			PeerInfo{
				PeerId: peer.PeerId,
				Roles:  peer.Roles,
			},
		)
	}
	return ret
}

func slotCategory(roles handshake.Roles, inbound bool) SlotCategory {
	switch {
	case roles.IsFull() && inbound:
		return SlotCategoryFullInbound
	case roles.IsFull():
		return SlotCategoryFullOutbound
	case roles.IsLight():
		return SlotCategoryLight
	default:
		return SlotCategoryNone
	}
}
