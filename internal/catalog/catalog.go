// Package catalog models the property catalog: a single JSON document that
// acts as the bot's database. The Drive folder tree is a derived mirror; the
// catalog is the source of truth.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// CurrentVersion is stamped on catalogs created by this code.
const CurrentVersion = 1

// Property statuses. A record with an empty status counts as active.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
	StatusDeleted  = "deleted"
)

// ErrInvalid marks a catalog that failed integrity validation: corrupt JSON
// or missing invariants. It is fatal; callers must not retry or repair.
var ErrInvalid = errors.New("invalid catalog")

// Property is one catalog record. Records are soft-deleted: a deleted
// property stays in the array with status "deleted" forever.
type Property struct {
	Address           string `json:"address"`
	NormalizedAddress string `json:"normalizedAddress"`
	PropertyFolderID  string `json:"propertyFolderId"`
	CreatedAt         string `json:"createdAt"`
	Status            string `json:"status"`
	ArchivedAt        string `json:"archivedAt,omitempty"`
	DeletedAt         string `json:"deletedAt,omitempty"`
	UnarchivedAt      string `json:"unarchivedAt,omitempty"`
}

// IsActive reports whether the record counts as active (absent status means active).
func (p *Property) IsActive() bool {
	return p.Status == StatusActive || p.Status == ""
}

// IsDeleted reports whether the record was soft-deleted.
func (p *Property) IsDeleted() bool {
	return p.Status == StatusDeleted
}

// Catalog is the JSON document stored in Drive.
type Catalog struct {
	Version    int        `json:"version"`
	UpdatedAt  string     `json:"updatedAt"`
	Properties []Property `json:"properties"`
}

// New returns a fresh empty catalog.
func New() *Catalog {
	return &Catalog{Version: CurrentVersion, Properties: []Property{}}
}

// Parse unmarshals and validates raw catalog bytes. Malformed JSON or a
// failed invariant yields ErrInvalid; the content is never auto-repaired.
func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %v", ErrInvalid, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the catalog invariants: version present, properties array present.
func (c *Catalog) Validate() error {
	if c.Version == 0 {
		return fmt.Errorf("%w: missing version", ErrInvalid)
	}
	if c.Properties == nil {
		return fmt.Errorf("%w: missing properties array", ErrInvalid)
	}
	return nil
}

// Encode serializes the catalog, stamping UpdatedAt with the current time.
func (c *Catalog) Encode() ([]byte, error) {
	c.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	return json.MarshalIndent(c, "", "  ")
}

// FindNonDeleted returns the first non-deleted record with the given
// normalized address, or nil. At most one such record exists per catalog.
func (c *Catalog) FindNonDeleted(normalizedAddress string) *Property {
	for i := range c.Properties {
		p := &c.Properties[i]
		if !p.IsDeleted() && p.NormalizedAddress == normalizedAddress {
			return p
		}
	}
	return nil
}

// FindWithStatus returns the first record with the given normalized address
// whose current status matches status, or nil.
func (c *Catalog) FindWithStatus(normalizedAddress, status string) *Property {
	for i := range c.Properties {
		p := &c.Properties[i]
		if p.NormalizedAddress != normalizedAddress {
			continue
		}
		if status == StatusActive && p.IsActive() {
			return p
		}
		if p.Status == status {
			return p
		}
	}
	return nil
}

var innerSpaceRe = regexp.MustCompile(`\s+`)

// NormalizeAddress trims the address and collapses internal whitespace runs
// to single spaces. The result is the property's identity key. An address
// that normalizes to the empty string is rejected.
func NormalizeAddress(address string) (string, error) {
	norm := innerSpaceRe.ReplaceAllString(strings.TrimSpace(address), " ")
	if norm == "" {
		return "", fmt.Errorf("address is empty after normalization")
	}
	return norm, nil
}

// Now returns the current UTC time in the catalog's timestamp format.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
