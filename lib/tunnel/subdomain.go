// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var subdomainAdjectives = []string{
	"quiet", "brisk", "amber", "cobalt", "lucky", "sparse", "vivid",
	"nimble", "hollow", "dapper", "wry", "salty", "muted", "sunny",
	"stark", "plucky", "rusty", "tidy", "spry", "grave",
}

var subdomainAnimals = []string{
	"otter", "heron", "lynx", "mantis", "gecko", "falcon", "badger",
	"marlin", "civet", "wombat", "tapir", "kestrel", "vole", "seal",
	"jaybird", "shrew", "orca", "ibis", "pika", "dingo",
}

// generateSubdomain returns a random "<adjective>-<animal>-<0..99>"
// name used when the caller does not request a specific subdomain.
func generateSubdomain() (string, error) {
	adjective, err := randomChoice(subdomainAdjectives)
	if err != nil {
		return "", err
	}
	animal, err := randomChoice(subdomainAnimals)
	if err != nil {
		return "", err
	}
	suffix, err := randomInt(100)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%d", adjective, animal, suffix), nil
}

func randomChoice(options []string) (string, error) {
	index, err := randomInt(len(options))
	if err != nil {
		return "", err
	}
	return options[index], nil
}

func randomInt(n int) (int, error) {
	max := big.NewInt(int64(n))
	value, err := rand.Int(rand.Reader, max)
	if err != nil {
		return 0, fmt.Errorf("tunnel: generating random subdomain component: %w", err)
	}
	return int(value.Int64()), nil
}
