package push

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"

	"workflow/pkg/logx"
)

// Keys is the VAPID key pair, base64url encoded as browsers expect.
type Keys struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

func (k Keys) valid() bool {
	return strings.TrimSpace(k.PublicKey) != "" && strings.TrimSpace(k.PrivateKey) != ""
}

// LoadOrCreateKeys reads the key pair at path, generating and saving a new
// one on first start. A present but unreadable file is an error: replacing
// the keys would orphan every existing browser subscription.
func LoadOrCreateKeys(path string, log logx.Logger) (Keys, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		var k Keys
		if err := json.Unmarshal(b, &k); err != nil {
			return Keys{}, fmt.Errorf("vapid keys %s: %w", path, err)
		}
		if !k.valid() {
			return Keys{}, fmt.Errorf("vapid keys %s: publicKey and privateKey are required", path)
		}
		return k, nil
	case !errors.Is(err, os.ErrNotExist):
		return Keys{}, fmt.Errorf("vapid keys %s: %w", path, err)
	}

	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return Keys{}, fmt.Errorf("generate vapid keys: %w", err)
	}
	k := Keys{PublicKey: pub, PrivateKey: priv}
	if err := saveKeys(path, k); err != nil {
		return Keys{}, err
	}
	log.Info("generated vapid key pair", logx.String("path", path))
	return k, nil
}

func saveKeys(path string, k Keys) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return err
	}
	// O_EXCL: never clobber a pair written by a concurrent start.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("save vapid keys: %w", err)
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("save vapid keys: %w", err)
	}
	return f.Close()
}
