//
// Copyright (c) 2026, Přemysl Eric Janouch <p@janouch.name>
//
// Permission to use, copy, modify, and/or distribute this software for any
// purpose with or without fee is hereby granted.
//
// THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
// WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY
// SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
// WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION
// OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR IN
// CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
//

// Package secret keeps API keys and similar credentials in an encrypted
// on-disk store. Values are sealed with AES-256-GCM under a key derived
// from a passphrase, each under a fresh nonce, with the credential name
// as additional authenticated data.
package secret

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"regexp"
	"time"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	keyIterations = 100000
	keySize       = 32
	saltSize      = 16

	maxNameLen  = 256
	maxValueLen = 4096
)

var (
	bucketCredentials = []byte("credentials")
	bucketMeta        = []byte("meta")

	metaSalt  = []byte("salt")
	metaCheck = []byte("check")

	// checkPlaintext exists to tell a wrong passphrase
	// from a missing credential.
	checkPlaintext = []byte("mcpd")
)

// ErrNoCredential is returned when the named credential isn't stored.
var ErrNoCredential = errors.New("no such credential")

var nameRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store is an open credential database.
type Store struct {
	db   *bolt.DB
	aead cipher.AEAD
}

// Open opens or creates the credential database at path, deriving the
// sealing key from the passphrase. A wrong passphrase is an error.
func Open(path, passphrase string) (*Store, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	var salt, check []byte
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(
			bucketCredentials); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}

		if stored := meta.Get(metaSalt); stored != nil {
			salt = append([]byte(nil), stored...)
		} else {
			salt = make([]byte, saltSize)
			if _, err := rand.Read(salt); err != nil {
				return err
			}
			if err := meta.Put(metaSalt, salt); err != nil {
				return err
			}
		}
		check = append([]byte(nil), meta.Get(metaCheck)...)
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	key := pbkdf2.Key(
		[]byte(passphrase), salt, keyIterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		db.Close()
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, aead: aead}
	if len(check) == 0 {
		sealed, err := s.seal(checkPlaintext, metaCheck)
		if err != nil {
			db.Close()
			return nil, err
		}
		err = db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketMeta).Put(metaCheck, sealed)
		})
		if err != nil {
			db.Close()
			return nil, err
		}
	} else if opened, err := s.open(check, metaCheck); err != nil ||
		!bytes.Equal(opened, checkPlaintext) {
		db.Close()
		return nil, errors.New("wrong passphrase")
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) seal(plaintext, ad []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, ad), nil
}

func (s *Store) open(sealed, ad []byte) ([]byte, error) {
	if len(sealed) < s.aead.NonceSize() {
		return nil, errors.New("truncated record")
	}
	nonce, ciphertext :=
		sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	return s.aead.Open(nil, nonce, ciphertext, ad)
}

func checkName(name string) error {
	if name == "" || len(name) > maxNameLen {
		return fmt.Errorf("invalid credential name")
	}
	if !nameRE.MatchString(name) {
		return fmt.Errorf("credential name contains invalid characters")
	}
	return nil
}

// Put stores a credential, replacing any previous value of that name.
func (s *Store) Put(name, value string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if value == "" || len(value) > maxValueLen {
		return fmt.Errorf("invalid credential value")
	}

	sealed, err := s.seal([]byte(value), []byte(name))
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCredentials).Put([]byte(name), sealed)
	})
}

// Get retrieves a stored credential.
func (s *Store) Get(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}

	var sealed []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if stored := tx.Bucket(bucketCredentials).
			Get([]byte(name)); stored != nil {
			sealed = append([]byte(nil), stored...)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if sealed == nil {
		return "", ErrNoCredential
	}

	value, err := s.open(sealed, []byte(name))
	if err != nil {
		return "", fmt.Errorf("credential %q: %w", name, err)
	}
	return string(value), nil
}

// Delete removes a stored credential.
func (s *Store) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		if b.Get([]byte(name)) == nil {
			return ErrNoCredential
		}
		return b.Delete([]byte(name))
	})
}

// Clear removes all stored credentials.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketCredentials); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketCredentials)
		return err
	})
}

// Names lists stored credential names in key order.
func (s *Store) Names() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCredentials).ForEach(
			func(k, v []byte) error {
				names = append(names, string(k))
				return nil
			})
	})
	return names, err
}

// --- Validation --------------------------------------------------------------

var apiKeyREs = []*regexp.Regexp{
	regexp.MustCompile(`^sk-[A-Za-z0-9-]{20,}$`),
	regexp.MustCompile(`^AIza[A-Za-z0-9_-]{35}$`),
	regexp.MustCompile(`^[A-Za-z0-9]{32,128}$`),
}

// ValidAPIKey loosely checks whether a string looks like an API key:
// either a known provider shape, or just a reasonable length.
func ValidAPIKey(key string) bool {
	for _, re := range apiKeyREs {
		if re.MatchString(key) {
			return true
		}
	}
	return len(key) >= 20 && len(key) <= 200
}
