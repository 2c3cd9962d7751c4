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

package main

import (
	"testing"

	"github.com/blinklabs-io/goaleph/handshake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoles(t *testing.T) {
	testDefs := map[string]handshake.Roles{
		"full":            handshake.RoleFull,
		"light":           handshake.RoleLight,
		"Full, Authority": handshake.RoleFull | handshake.RoleAuthority,
		"":                0,
	}
	for input, expected := range testDefs {
		roles, err := parseRoles(input)
		require.NoError(t, err)
		assert.Equal(t, expected, roles, "input: %q", input)
	}
	_, err := parseRoles("archive")
	assert.Error(t, err)
}

func TestLoadPrivateKey(t *testing.T) {
	seed := "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"
	key, err := loadPrivateKey(seed)
	require.NoError(t, err)
	other, err := loadPrivateKey(seed)
	require.NoError(t, err)
	assert.Equal(t, key, other)
	random, err := loadPrivateKey("")
	require.NoError(t, err)
	assert.NotEqual(t, key, random)
	_, err = loadPrivateKey("abcd")
	assert.Error(t, err)
	_, err = loadPrivateKey("zz")
	assert.Error(t, err)
}
