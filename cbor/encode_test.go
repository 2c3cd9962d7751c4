// Copyright 2023 Blink Labs Software
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


package cbor_test

import (
	"encoding/hex"
	"testing"

	"github.com/blinklabs-io/goaleph/cbor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type encodeTestDefinition struct {
	name    string
	cborHex string
	object  any
}

type arrayStruct struct {
	cbor.StructAsArray
	A uint64
	B string
}

var encodeTests = []encodeTestDefinition{
	{
		name:    "simple list of numbers",
		cborHex: "83010203",
		object:  []any{1, 2, 3},
	},
	{
		name:    "map keys are sorted",
		cborHex: "a2616101616202",
		object:  map[string]int{"b": 2, "a": 1},
	},
	{
		name:    "struct as array",
		cborHex: "82076161",
		object:  arrayStruct{A: 7, B: "a"},
	},
}

func TestEncode(t *testing.T) {
	for _, test := range encodeTests {
		t.Run(test.name, func(t *testing.T) {
			cborData, err := cbor.Encode(test.object)
			require.NoError(t, err)
			assert.Equal(t, test.cborHex, hex.EncodeToString(cborData))
		})
	}
}
