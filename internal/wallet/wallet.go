// internal/wallet/wallet.go
package wallet

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperledger/fabric-sdk-go/pkg/gateway"
)

// Identity locates the enrollment material for one wallet label.
type Identity struct {
	OrgName  string
	Label    string
	CertPath string
	KeyDir   string
}

func (id Identity) MSPID() string { return id.OrgName + "MSP" }

// PopulateWallet stores the identity in w unless its label is already present.
func PopulateWallet(w *gateway.Wallet, id Identity) error {
	if w.Exists(id.Label) {
		return nil
	}

	cert, err := os.ReadFile(filepath.Clean(id.CertPath))
	if err != nil {
		return fmt.Errorf("read certificate for %s: %w", id.Label, err)
	}

	keyPath, err := findPrivateKey(id.KeyDir)
	if err != nil {
		return err
	}
	key, err := os.ReadFile(filepath.Clean(keyPath))
	if err != nil {
		return fmt.Errorf("read private key for %s: %w", id.Label, err)
	}

	return w.Put(id.Label, gateway.NewX509Identity(id.MSPID(), string(cert), string(key)))
}

// findPrivateKey returns the key file in dir. Fabric CA names it *_sk; any other regular
// file is accepted when no such file exists.
func findPrivateKey(dir string) (string, error) {
	entries, err := os.ReadDir(filepath.Clean(dir))
	if err != nil {
		return "", err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no private key found in directory %s", dir)
	}
	sort.Strings(files)
	for _, name := range files {
		if strings.HasSuffix(name, "_sk") {
			return filepath.Join(dir, name), nil
		}
	}
	return filepath.Join(dir, files[0]), nil
}
