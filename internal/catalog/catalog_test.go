package catalog

import (
	"errors"
	"testing"
)

// --- NormalizeAddress Tests ---

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("  Calle   Mayor    123  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Calle Mayor 123" {
		t.Errorf("expected \"Calle Mayor 123\", got %q", got)
	}
}

func TestNormalizeAddress_Idempotent(t *testing.T) {
	first, err := NormalizeAddress("  Av.  de  América   5 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := NormalizeAddress(first)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("normalization not idempotent: %q != %q", first, second)
	}
}

func TestNormalizeAddress_Empty(t *testing.T) {
	for _, in := range []string{"", "   ", "\t\n"} {
		if _, err := NormalizeAddress(in); err == nil {
			t.Errorf("NormalizeAddress(%q): expected error, got nil", in)
		}
	}
}

// --- Parse / Validate Tests ---

func TestParse_RoundTrip(t *testing.T) {
	c := New()
	c.Properties = append(c.Properties, Property{
		Address:           "Calle Mayor 123",
		NormalizedAddress: "Calle Mayor 123",
		PropertyFolderID:  "folder-1",
		CreatedAt:         Now(),
		Status:            StatusActive,
	})

	raw, err := c.Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	back, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(back.Properties) != 1 {
		t.Fatalf("expected 1 property, got %d", len(back.Properties))
	}
	if back.Properties[0].NormalizedAddress != "Calle Mayor 123" {
		t.Errorf("round trip lost normalized address: %q", back.Properties[0].NormalizedAddress)
	}
	if back.Version != CurrentVersion {
		t.Errorf("expected version %d, got %d", CurrentVersion, back.Version)
	}
}

func TestParse_MalformedJSON(t *testing.T) {
	_, err := Parse([]byte("{not json"))
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for malformed JSON, got %v", err)
	}
}

func TestParse_MissingInvariants(t *testing.T) {
	// Missing version.
	if _, err := Parse([]byte(`{"properties":[]}`)); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for missing version, got %v", err)
	}
	// Missing properties array.
	if _, err := Parse([]byte(`{"version":1}`)); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for missing properties, got %v", err)
	}
}

// --- Lookup Tests ---

func TestFindNonDeleted(t *testing.T) {
	c := New()
	c.Properties = []Property{
		{NormalizedAddress: "Calle Mayor 123", Status: StatusDeleted},
		{NormalizedAddress: "Calle Mayor 123", Status: StatusArchived},
	}
	got := c.FindNonDeleted("Calle Mayor 123")
	if got == nil || got.Status != StatusArchived {
		t.Errorf("expected the archived record, got %+v", got)
	}
	if c.FindNonDeleted("Otra Calle 1") != nil {
		t.Error("expected nil for unknown address")
	}
}

func TestFindWithStatus_EmptyStatusIsActive(t *testing.T) {
	c := New()
	c.Properties = []Property{{NormalizedAddress: "Calle Mayor 123"}}
	if c.FindWithStatus("Calle Mayor 123", StatusActive) == nil {
		t.Error("expected record with empty status to count as active")
	}
	if c.FindWithStatus("Calle Mayor 123", StatusArchived) != nil {
		t.Error("expected nil when status does not match")
	}
}
