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

package muxer

import (
	"time"
)

const (
	// SegmentMaxPayloadLength is the largest payload a single segment can carry
	SegmentMaxPayloadLength = 65535
)

// SegmentHeader is the fixed-size header written before every segment payload
type SegmentHeader struct {
	Timestamp     uint32
	ProtocolId    uint16
	PayloadLength uint16
}

// Segment is a unit of data for a single protocol
type Segment struct {
	SegmentHeader
	Payload []byte
}

// NewSegment returns a new segment for the specified protocol. It returns nil when the
// payload doesn't fit in one segment
func NewSegment(protocolId uint16, payload []byte) *Segment {
	if len(payload) > SegmentMaxPayloadLength {
		return nil
	}
	header := SegmentHeader{
		Timestamp:     uint32(time.Now().UnixNano() & 0xffffffff), // #nosec G115
		ProtocolId:    protocolId,
		PayloadLength: uint16(len(payload)), // #nosec G115
	}
	segment := &Segment{
		SegmentHeader: header,
		Payload:       payload,
	}
	return segment
}

func (s *SegmentHeader) GetProtocolId() uint16 {
	return s.ProtocolId
}
