package security

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "litcode"
	vaultFile      = "vault.enc"
	saltFile       = "vault.salt"

	// MasterPasswordEnv unlocks the encrypted vault used when no OS keyring
	// is available.
	MasterPasswordEnv = "LITCODE_MASTER_PASSWORD"

	// Placeholder marks a config value whose real content lives in the KeyStore.
	Placeholder = "[keyring]"

	SecretTelegramToken = "telegram_token"
)

// ErrNotFound is returned when a secret is in neither the keyring nor the vault.
var ErrNotFound = errors.New("secret not found")

// SecretName is the KeyStore name of a backend's API key.
func SecretName(backend string) string {
	return "api_key_" + backend
}

// KeyStore manages secure storage of API keys.
// Primary: OS Keychain. Fallback: encrypted file.
type KeyStore struct {
	mu            sync.Mutex // serializes vault read-modify-write
	encryptionKey []byte     // derived from master password, nil when locked
	vaultPath     string
}

// NewKeyStore creates a key store whose vault lives in dir.
// masterKey may be nil if only the keyring is used.
func NewKeyStore(dir string, masterKey []byte) *KeyStore {
	return &KeyStore{
		encryptionKey: masterKey,
		vaultPath:     filepath.Join(dir, vaultFile),
	}
}

// OpenKeyStore creates a key store in dir, unlocking the vault with
// LITCODE_MASTER_PASSWORD when it is set.
func OpenKeyStore(dir string) (*KeyStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	var key []byte
	if pw := os.Getenv(MasterPasswordEnv); pw != "" {
		salt, err := LoadOrCreateSalt(filepath.Join(dir, saltFile))
		if err != nil {
			return nil, fmt.Errorf("vault salt: %w", err)
		}
		key = DeriveKey(pw, salt)
	}
	return NewKeyStore(dir, key), nil
}

// Set stores a secret (tries keyring first, falls back to encrypted file).
func (ks *KeyStore) Set(name, value string) error {
	kerr := keyring.Set(keyringService, name, value)
	if kerr == nil {
		return nil
	}

	if err := ks.setInVault(name, value); err != nil {
		return fmt.Errorf("keyring: %v; vault: %w", kerr, err)
	}
	return nil
}

// Get retrieves a secret.
func (ks *KeyStore) Get(name string) (string, error) {
	if val, err := keyring.Get(keyringService, name); err == nil {
		return val, nil
	}
	return ks.getFromVault(name)
}

// Delete removes a secret from both stores.
func (ks *KeyStore) Delete(name string) error {
	kerr := keyring.Delete(keyringService, name)
	verr := ks.deleteFromVault(name)
	if kerr != nil && !errors.Is(kerr, keyring.ErrNotFound) && verr != nil {
		return fmt.Errorf("keyring: %v; vault: %w", kerr, verr)
	}
	return nil
}

// Resolve returns the secret behind a config value. Values other than
// Placeholder are returned as they are.
func (ks *KeyStore) Resolve(value, name string) (string, error) {
	if value != Placeholder {
		return value, nil
	}
	return ks.Get(name)
}

// MaskKey returns a masked version of an API key for display.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "..." + key[len(key)-4:]
}

// Vault operations (encrypted JSON file)
func (ks *KeyStore) loadVault() (map[string]string, error) {
	data, err := os.ReadFile(ks.vaultPath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}

	if ks.encryptionKey == nil {
		return nil, fmt.Errorf("vault is locked: set %s", MasterPasswordEnv)
	}

	plaintext, err := Decrypt(string(data), ks.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt vault: %w", err)
	}

	var vault map[string]string
	if err := json.Unmarshal(plaintext, &vault); err != nil {
		return nil, fmt.Errorf("parse vault: %w", err)
	}
	if vault == nil {
		vault = make(map[string]string)
	}
	return vault, nil
}

func (ks *KeyStore) saveVault(vault map[string]string) error {
	if ks.encryptionKey == nil {
		return fmt.Errorf("no OS keyring and no %s set", MasterPasswordEnv)
	}

	data, err := json.Marshal(vault)
	if err != nil {
		return err
	}

	encrypted, err := Encrypt(data, ks.encryptionKey)
	if err != nil {
		return err
	}

	return os.WriteFile(ks.vaultPath, []byte(encrypted), 0600)
}

func (ks *KeyStore) setInVault(name, value string) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	vault, err := ks.loadVault()
	if err != nil {
		return err
	}
	vault[name] = value
	return ks.saveVault(vault)
}

func (ks *KeyStore) getFromVault(name string) (string, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	vault, err := ks.loadVault()
	if err != nil {
		return "", err
	}
	val, ok := vault[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return val, nil
}

func (ks *KeyStore) deleteFromVault(name string) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	vault, err := ks.loadVault()
	if err != nil {
		return err
	}
	if _, ok := vault[name]; !ok {
		return nil
	}
	delete(vault, name)
	return ks.saveVault(vault)
}
