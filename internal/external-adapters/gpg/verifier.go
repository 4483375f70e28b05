// Package gpg provides OpenPGP detached-signature verification for local files.
package gpg

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

const armoredSignaturePrefix = "-----BEGIN PGP SIGNATURE---"

// Verifier checks detached OpenPGP signatures using ProtonMail's go-crypto
// This is in external-adapters to isolate the external dependency
type Verifier struct {
	keyring openpgp.EntityList
}

// NewVerifier creates a new verifier with an empty keyring
func NewVerifier() *Verifier {
	return &Verifier{keyring: make(openpgp.EntityList, 0)}
}

// ImportKeyFromFile imports public keys from an armored or binary keyring file
func (v *Verifier) ImportKeyFromFile(keyPath string) error {
	//nolint:gosec // G304: keyPath comes from configuration
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to open key file: %w", err)
	}
	return v.ImportKeys(data)
}

// ImportKeys imports public keys from armored or binary keyring bytes
func (v *Verifier) ImportKeys(data []byte) error {
	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		entities, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
	}

	if len(entities) == 0 {
		return fmt.Errorf("no keys found in keyring")
	}

	v.keyring = append(v.keyring, entities...)
	return nil
}

// VerifySignatureFromFile verifies a detached signature stored next to the data file
func (v *Verifier) VerifySignatureFromFile(filePath, sigPath string) error {
	//nolint:gosec // G304: sigPath comes from configuration
	sigData, err := os.ReadFile(sigPath)
	if err != nil {
		return fmt.Errorf("failed to open signature file: %w", err)
	}

	//nolint:gosec // G304: filePath comes from configuration
	dataFile, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open data file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer dataFile.Close()

	return v.Verify(dataFile, sigData)
}

// Verify checks sig (armored or binary) over the content of signed
func (v *Verifier) Verify(signed io.Reader, sig []byte) error {
	if len(v.keyring) == 0 {
		return fmt.Errorf("no keys imported, call ImportKeyFromFile first")
	}

	var verifyErr error
	if bytes.HasPrefix(bytes.TrimSpace(sig), []byte(armoredSignaturePrefix)) {
		_, verifyErr = openpgp.CheckArmoredDetachedSignature(v.keyring, signed, bytes.NewReader(sig), nil)
	} else {
		_, verifyErr = openpgp.CheckDetachedSignature(v.keyring, signed, bytes.NewReader(sig), nil)
	}

	if verifyErr != nil {
		return fmt.Errorf("signature verification failed: %w", verifyErr)
	}
	return nil
}

// GetKeyringSize returns the number of keys in the keyring
func (v *Verifier) GetKeyringSize() int {
	return len(v.keyring)
}
