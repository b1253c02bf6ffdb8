// Package backup encodes and decodes full-state backup files. The
// envelope is versioned so older exports can be rejected cleanly
// instead of half-restored.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tokopos/backend/internal/domain"
)

const Version = "1.0"

var ErrBadBackup = errors.New("bad backup payload")

// Envelope is the on-disk backup format. Data always carries all four
// collections; an empty store exports empty arrays, not nulls.
type Envelope struct {
	Version   string          `json:"version"`
	ID        string          `json:"id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      domain.Snapshot `json:"data"`
}

func Encode(snapshot domain.Snapshot, at time.Time) ([]byte, error) {
	if snapshot.Products == nil {
		snapshot.Products = []domain.Product{}
	}
	if snapshot.Customers == nil {
		snapshot.Customers = []domain.Customer{}
	}
	if snapshot.Sales == nil {
		snapshot.Sales = []domain.Sale{}
	}
	if snapshot.Purchases == nil {
		snapshot.Purchases = []domain.Purchase{}
	}
	env := Envelope{
		Version:   Version,
		ID:        uuid.NewString(),
		Timestamp: at.UTC(),
		Data:      snapshot,
	}
	return json.MarshalIndent(env, "", "  ")
}

// Decode parses a backup file. Malformed JSON, an unknown version, or
// a missing data section all come back as ErrBadBackup; the caller
// restores nothing in that case.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBackup, err)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrBadBackup, env.Version)
	}
	if env.Data.Products == nil && env.Data.Customers == nil && env.Data.Sales == nil && env.Data.Purchases == nil {
		return nil, fmt.Errorf("%w: missing data section", ErrBadBackup)
	}
	return &env, nil
}

// Filename is the suggested download name, e.g. pos-backup-2026-09-01.json.
func Filename(at time.Time) string {
	return fmt.Sprintf("pos-backup-%s.json", at.UTC().Format("2006-01-02"))
}
