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

// Package cbor provides the CBOR encoding/decoding helpers used by the wire types
// of this module.
//
// This package wraps github.com/fxamacker/cbor/v2 with a deterministic encoder
// and a strict decoder.
//
// Embeddable types for struct encoding:
//   - StructAsArray: Embed to encode struct fields as CBOR array instead of map
//   - DecodeStoreCbor: Embed to preserve original CBOR bytes
//
// When a type needs its original CBOR bytes preserved:
//
//	type MyType struct {
//	    cbor.StructAsArray
//	    cbor.DecodeStoreCbor
//	    Field1 string
//	    Field2 int
//	}
//
//	func (m *MyType) UnmarshalCBOR(data []byte) error {
//	    return m.UnmarshalCborGeneric(data, m)
//	}
//
// Later, m.Cbor() returns the original bytes.
package cbor
