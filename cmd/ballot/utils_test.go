// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPassphraseFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(path, []byte("s3cret\r\nignored\n"), 0o600))

	pass, err := readPassphrase(path, "")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pass)

	_, err = readPassphrase(filepath.Join(t.TempDir(), "missing"), "")
	assert.Error(t, err)
}

func TestLoadKeyFromEnv(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	t.Setenv("BALLOT_TEST_KEY", "0x"+hex.EncodeToString(crypto.FromECDSA(key)))

	loaded, err := loadKeyFromEnv("BALLOT_TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(loaded.PublicKey))

	t.Setenv("BALLOT_TEST_BAD_KEY", "zz")
	_, err = loadKeyFromEnv("BALLOT_TEST_BAD_KEY")
	assert.Error(t, err)

	_, err = loadKeyFromEnv("BALLOT_TEST_UNSET_KEY")
	assert.Error(t, err)
}

func TestOpenWalletFromKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)
	t.Setenv("BALLOT_TEST_KEY", hex.EncodeToString(crypto.FromECDSA(key)))

	w, desc, err := openWallet(nil, &settings{PrivateKeyEnv: "BALLOT_TEST_KEY", Account: addr.Hex()}, nil)
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, []common.Address{addr}, w.Accounts())
	assert.Contains(t, desc, "BALLOT_TEST_KEY")

	_, _, err = openWallet(nil, &settings{PrivateKeyEnv: "BALLOT_TEST_KEY", Account: common.Address{1}.Hex()}, nil)
	assert.Error(t, err, "selecting an account outside the wallet fails")

	_, _, err = openWallet(nil, &settings{PrivateKeyEnv: "BALLOT_TEST_KEY", Account: "nope"}, nil)
	assert.Error(t, err)
}

func TestOpenWalletFromKeystore(t *testing.T) {
	dir := t.TempDir()
	ks := keystore.NewKeyStore(dir, keystore.LightScryptN, keystore.LightScryptP)
	first, err := ks.NewAccount("pw")
	require.NoError(t, err)
	second, err := ks.NewAccount("pw")
	require.NoError(t, err)

	w, _, err := openWallet(nil, &settings{Keystore: dir, Account: second.Address.Hex()}, nil)
	require.NoError(t, err)
	defer w.Close()
	assert.ElementsMatch(t, []common.Address{first.Address, second.Address}, w.Accounts())
}

func TestOpenWalletUnconfigured(t *testing.T) {
	_, _, err := openWallet(nil, &settings{}, nil)
	assert.Error(t, err)
}
