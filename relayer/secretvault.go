package relayer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/crosslock-io/bridge-go/common"
)

// SecretVault is the secret-acquisition channel. How secrets reach the
// relayer (files, a secure channel, an on-chain reveal) is a deployment
// concern; the reconciler only needs "secret becomes available eventually".
type SecretVault interface {
	// LookupSecret returns the preimage committed to by hash,
	// ok == false when it is not (yet) available.
	LookupSecret(hash ethcommon.Hash) ([]byte, bool, error)
}

// NullVault never has a secret. Deployments that rely purely on on-chain
// withdrawal reveals run with this.
type NullVault struct{}

func (NullVault) LookupSecret(_ ethcommon.Hash) ([]byte, bool, error) {
	return nil, false, nil
}

// DirVault reads one file per secret: <dir>/<secret hash hex>.secret holding
// the hex-encoded preimage.
type DirVault struct {
	dir string
}

// NewDirVault fails when the directory does not exist; running without a
// secret channel would leave every swap pending forever.
func NewDirVault(dir string) (*DirVault, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("secret vault directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secret vault path %s is not a directory", dir)
	}
	return &DirVault{dir: dir}, nil
}

func (v *DirVault) LookupSecret(hash ethcommon.Hash) ([]byte, bool, error) {
	name := filepath.Join(v.dir, common.Trim0xPrefix(hash.String())+".secret")
	raw, err := os.ReadFile(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	preimage := common.HexStrToByteSlice(strings.TrimSpace(string(raw)))
	if len(preimage) == 0 {
		return nil, false, fmt.Errorf("secret file %s is empty or not hex", name)
	}
	return preimage, true, nil
}
