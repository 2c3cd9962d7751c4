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
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	aleph "github.com/blinklabs-io/goaleph"
	"github.com/blinklabs-io/goaleph/handshake"
)

type globalFlags struct {
	flagset        *flag.FlagSet
	config         string
	keySeed        string
	roles          string
	listenAddress  string
	metricsAddress string
	debug          bool
}

func newGlobalFlags() *globalFlags {
	f := &globalFlags{
		flagset: flag.NewFlagSet(os.Args[0], flag.ExitOnError),
	}
	f.flagset.StringVar(
		&f.config,
		"config",
		"",
		"path to the network config file",
	)
	f.flagset.StringVar(
		&f.keySeed,
		"key-seed",
		"",
		"hex-encoded 32 byte seed of the node identity key (random if not specified)",
	)
	f.flagset.StringVar(
		&f.roles,
		"roles",
		"full",
		"comma separated node roles (full, light, authority)",
	)
	f.flagset.StringVar(
		&f.listenAddress,
		"listen",
		"",
		"TCP address to listen on in address:port format. this overrides the config file",
	)
	f.flagset.StringVar(
		&f.metricsAddress,
		"metrics",
		"",
		"TCP address to serve metrics and peer info on. this overrides the config file",
	)
	f.flagset.BoolVar(&f.debug, "debug", false, "enable debug logging")
	return f
}

func parseRoles(roles string) (handshake.Roles, error) {
	var ret handshake.Roles
	for _, role := range strings.Split(roles, ",") {
		switch strings.TrimSpace(strings.ToLower(role)) {
		case "full":
			ret |= handshake.RoleFull
		case "light":
			ret |= handshake.RoleLight
		case "authority":
			ret |= handshake.RoleAuthority
		case "":
		default:
			return 0, fmt.Errorf("unknown role: %s", role)
		}
	}
	return ret, nil
}

func loadPrivateKey(keySeed string) (ed25519.PrivateKey, error) {
	if keySeed == "" {
		_, privateKey, err := ed25519.GenerateKey(rand.Reader)
		return privateKey, err
	}
	seed, err := hex.DecodeString(keySeed)
	if err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf(
			"invalid key seed length: got %d, expected %d",
			len(seed),
			ed25519.SeedSize,
		)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func main() {
	f := newGlobalFlags()
	if err := f.flagset.Parse(os.Args[1:]); err != nil {
		fmt.Printf("failed to parse command args: %s\n", err)
		os.Exit(1)
	}
	logLevel := slog.LevelInfo
	if f.debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}),
	)
	slog.SetDefault(logger)

	if f.config == "" {
		fmt.Printf("You must specify -config\n\n")
		f.flagset.PrintDefaults()
		os.Exit(1)
	}
	cfg, err := aleph.NewNetworkConfigFromFile(f.config)
	if err != nil {
		fmt.Printf("failed to load config: %s\n", err)
		os.Exit(1)
	}
	if f.listenAddress != "" {
		cfg.ListenAddress = f.listenAddress
	}
	if f.metricsAddress != "" {
		cfg.MetricsAddress = f.metricsAddress
	}
	roles, err := parseRoles(f.roles)
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		os.Exit(1)
	}
	privateKey, err := loadPrivateKey(f.keySeed)
	if err != nil {
		fmt.Printf("ERROR: failed to load identity key: %s\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	n, err := newNode(cfg, privateKey, roles, logger)
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		os.Exit(1)
	}
	if err := n.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(
			"node stopped",
			"error", err,
		)
		os.Exit(1)
	}
}
