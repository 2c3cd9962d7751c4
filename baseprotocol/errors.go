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

import "errors"

// Admission errors. All of them are terminal for the connection attempt and the caller is
// expected to close the underlying transport
var (
	ErrBadHandshake               = errors.New("badly encoded handshake")
	ErrWrongNetwork               = errors.New("handshake genesis hash does not match")
	ErrAlreadyConnected           = errors.New("peer already connected")
	ErrFullInboundSlotsExhausted  = errors.New("too many full inbound peers")
	ErrFullOutboundSlotsExhausted = errors.New("too many full outbound peers")
	ErrLightSlotsExhausted        = errors.New("too many light peers")
)

// ErrNotConnected is returned when disconnecting a peer that was never admitted or was
// already removed
var ErrNotConnected = errors.New("peer was not connected")

// Service errors
var (
	ErrServiceStopped     = errors.New("base protocol service is not running")
	ErrServiceAlreadyRun  = errors.New("base protocol service was already run")
	ErrStatusNotSupported = errors.New("status requests are not supported")
)
