package crypto

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/pairsniper/internal/domain"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestSealOpenKey(t *testing.T) {
	sealed, err := SealKey("0x"+testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("SealKey: %v", err)
	}
	got, err := OpenKey(sealed, "hunter2")
	if err != nil {
		t.Fatalf("OpenKey: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("OpenKey got=%s want=%s", got, testKeyHex)
	}
	if _, err := OpenKey(sealed, "wrong"); err == nil {
		t.Fatal("OpenKey with wrong password should fail")
	}
}

func TestLoadKeyPrefersRaw(t *testing.T) {
	pk, err := LoadKey(KeySource{RawPrivateKey: testKeyHex, KeyFilePath: "/does/not/exist"})
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	want := common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	if got := NewTxSigner(pk, 56).Address(); got != want {
		t.Fatalf("address got=%s want=%s", got.Hex(), want.Hex())
	}
}

func TestLoadKeyFromFile(t *testing.T) {
	sealed, err := SealKey(testKeyHex, "pw")
	if err != nil {
		t.Fatalf("SealKey: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadKey(KeySource{KeyFilePath: path, KeyPassword: "pw"}); err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if _, err := LoadKey(KeySource{}); err == nil {
		t.Fatal("LoadKey with no source should fail")
	}
	if _, err := LoadKey(KeySource{RawPrivateKey: "abcd"}); err == nil {
		t.Fatal("LoadKey with short key should fail")
	}
}

func TestTxSignerSign(t *testing.T) {
	pk, err := LoadKey(KeySource{RawPrivateKey: testKeyHex})
	if err != nil {
		t.Fatal(err)
	}
	s := NewTxSigner(pk, 56)
	tx, err := s.Sign(domain.TxRequest{
		Label:    "buy",
		To:       common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E"),
		Value:    big.NewInt(1e15),
		GasLimit: 300_000,
		GasPrice: big.NewInt(5e9),
	}, 7)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if tx.Nonce() != 7 {
		t.Fatalf("nonce got=%d want=7", tx.Nonce())
	}
	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(56)), tx)
	if err != nil {
		t.Fatalf("Sender: %v", err)
	}
	if from != s.Address() {
		t.Fatalf("sender got=%s want=%s", from.Hex(), s.Address().Hex())
	}
}
