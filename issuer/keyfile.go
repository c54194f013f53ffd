package issuer

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/certforge/certforge/internal/util"
)

// keyfileAAD binds ciphertexts to this file format; a keyfile blob pasted
// into some other AES-GCM context will not decrypt.
var keyfileAAD = []byte("certforge:issuer-keyfile:v1")

// keyfile is the on-disk form of an issuer identity: the Ed25519 seed
// encrypted with an Argon2id-derived key.
type keyfile struct {
	Ver        int                 `json:"ver"`
	Scheme     string              `json:"scheme"`
	KDFParams  util.Argon2idParams `json:"kdf_params"`
	Salt       []byte              `json:"salt"`
	Ciphertext []byte              `json:"ciphertext"`
}

// Save writes the identity to path, encrypting the seed under the passphrase.
func (id *Identity) Save(path, passphrase string) error {
	buf, err := id.seed.Open()
	if err != nil {
		return fmt.Errorf("opening issuer seed enclave: %w", err)
	}
	defer buf.Destroy()

	salt, err := util.RandomBytes(16)
	if err != nil {
		return err
	}
	params := util.DefaultArgon2idParams()
	key, err := util.DeriveArgon2idKey(passphrase, salt, params)
	if err != nil {
		return err
	}
	defer util.WipeBytes(key)

	ciphertext, err := util.EncryptAESWithAAD(buf.Bytes(), key, keyfileAAD)
	if err != nil {
		return fmt.Errorf("encrypting issuer seed: %w", err)
	}

	data, err := json.MarshalIndent(keyfile{
		Ver:        1,
		Scheme:     "argon2id-aes256gcm",
		KDFParams:  params,
		Salt:       salt,
		Ciphertext: ciphertext,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing issuer keyfile: %w", err)
	}
	return nil
}

// Load reads an issuer identity from the keyfile at path.
func Load(path, passphrase string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading issuer keyfile: %w", err)
	}
	var kf keyfile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parsing issuer keyfile: %w", err)
	}
	if kf.Ver != 1 {
		return nil, fmt.Errorf("unsupported keyfile version: %d", kf.Ver)
	}
	if kf.Scheme != "argon2id-aes256gcm" {
		return nil, fmt.Errorf("unsupported keyfile scheme: %s", kf.Scheme)
	}

	key, err := util.DeriveArgon2idKey(passphrase, kf.Salt, kf.KDFParams)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(key)

	seed, err := util.DecryptAESWithAAD(kf.Ciphertext, key, keyfileAAD)
	if err != nil {
		return nil, fmt.Errorf("decrypting issuer seed (wrong passphrase?): %w", err)
	}
	return fromSeed(seed), nil
}
