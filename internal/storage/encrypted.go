package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kuitang/pocketnotes/internal/crypto"
	"github.com/kuitang/pocketnotes/internal/obs"
)

// envelopeVersion identifies the sealed record layout.
const envelopeVersion = 1

// envelope is what an Encrypted backend hands to the wrapped backend.
type envelope struct {
	Version    int    `json:"v"`
	KEKVersion int    `json:"kek"`
	WrappedDEK []byte `json:"dek"`
	Data       []byte `json:"data"`
}

// Encrypted seals the record with AES-256-GCM before passing it to the
// wrapped backend. Each record has its own random DEK, stored wrapped by a
// KEK derived from the master key.
type Encrypted struct {
	inner      Backend
	masterKey  []byte
	name       string
	kekVersion int
	logger     *slog.Logger

	mu  sync.Mutex
	dek []byte
}

// NewEncrypted wraps inner. masterKey must be crypto.KeySize bytes.
func NewEncrypted(inner Backend, masterKey []byte, name string) (*Encrypted, error) {
	if len(masterKey) != crypto.KeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", crypto.KeySize, len(masterKey))
	}
	return &Encrypted{
		inner:      inner,
		masterKey:  masterKey,
		name:       name,
		kekVersion: 1,
		logger:     obs.Pkg("storage"),
	}, nil
}

// Load opens the sealed record. A record written before encryption was
// enabled is returned as is and gets sealed by the next Save.
func (e *Encrypted) Load(ctx context.Context) ([]byte, error) {
	raw, err := e.inner.Load(ctx)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Version == 0 || len(env.WrappedDEK) == 0 {
		e.logger.Warn("storage_record_unencrypted", "record", e.name)
		return raw, nil
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", env.Version)
	}

	kek := crypto.DeriveKEK(e.masterKey, e.name, env.KEKVersion)
	dek, err := crypto.UnwrapDEK(kek, env.WrappedDEK)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap record key: %w", err)
	}
	data, err := crypto.Open(dek, env.Data, []byte(e.name))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt record: %w", err)
	}

	e.mu.Lock()
	e.dek = dek
	e.mu.Unlock()
	return data, nil
}

// Save seals data and stores the envelope.
func (e *Encrypted) Save(ctx context.Context, data []byte) error {
	dek, err := e.recordKey()
	if err != nil {
		return err
	}

	sealed, err := crypto.Seal(dek, data, []byte(e.name))
	if err != nil {
		return fmt.Errorf("failed to encrypt record: %w", err)
	}
	wrapped, err := crypto.WrapDEK(crypto.DeriveKEK(e.masterKey, e.name, e.kekVersion), dek)
	if err != nil {
		return fmt.Errorf("failed to wrap record key: %w", err)
	}

	raw, err := json.Marshal(envelope{
		Version:    envelopeVersion,
		KEKVersion: e.kekVersion,
		WrappedDEK: wrapped,
		Data:       sealed,
	})
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	return e.inner.Save(ctx, raw)
}

// recordKey returns the DEK learned from Load, generating one for a new record.
func (e *Encrypted) recordKey() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dek == nil {
		dek, err := crypto.GenerateDEK()
		if err != nil {
			return nil, err
		}
		e.dek = dek
	}
	return e.dek, nil
}

// Close closes the wrapped backend.
func (e *Encrypted) Close() error {
	return e.inner.Close()
}

// Watch delegates to the wrapped backend when it supports watching.
func (e *Encrypted) Watch(ctx context.Context, onChange func()) error {
	w, ok := e.inner.(Watcher)
	if !ok {
		return fmt.Errorf("storage backend does not support watching")
	}
	return w.Watch(ctx, onChange)
}
