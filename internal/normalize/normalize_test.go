package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"lowercases and trims", "  Jane@X.Org ", "jane@x.org"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"no at sign", "jane.x.org", ""},
		{"missing local part", "@x.org", ""},
		{"missing domain", "jane@", ""},
		{"domain without dot", "jane@localhost", ""},
		{"double at", "jane@@x.org", ""},
		{"leading dot domain", "jane@.org", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Email(tt.raw))
		})
	}
}

func TestPhone(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"formatted", "(555) 123-4567", "5551234567"},
		{"bare ten digits", "5551234567", "5551234567"},
		{"leading country code", "1-555-123-4567", "5551234567"},
		{"too short", "123456", ""},
		{"too long", "555123456789", ""},
		{"eleven digits not starting with 1", "25551234567", ""},
		{"letters only", "call me", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Phone(tt.raw))
		})
	}
}

// Normalizing an already-normalized value must be a no-op.
func TestIdempotence(t *testing.T) {
	email := Email("  Jane@X.Org ")
	assert.Equal(t, email, Email(email))

	phone := Phone("1 (555) 123-4567")
	assert.Equal(t, phone, Phone(phone))

	addr := Address("123 North Main Street, Apt. 4")
	assert.Equal(t, addr, Address(addr))

	name := DisplayName("  Jane ", " Doe  ")
	assert.Equal(t, name, CollapseSpaces(name))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Jane Doe", DisplayName(" Jane ", " Doe "))
	assert.Equal(t, "Jane", DisplayName("Jane", ""))
	assert.Equal(t, "Doe", DisplayName("", "Doe"))
	assert.Equal(t, "", DisplayName("  ", ""))
	assert.Equal(t, "Mary Jo Smith", DisplayName("Mary  Jo", "Smith"))
}

func TestAddress(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"abbreviates street words", "123 North Main Street", "123 n main st"},
		{"strips punctuation", "123 Main St., Apt. #4", "123 main st apt 4"},
		{"already short forms untouched", "123 n main st", "123 n main st"},
		{"empty", "", ""},
		{"equivalent forms collide", "55 West Oak Avenue", Address("55 W. Oak Ave")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Address(tt.raw))
		})
	}
}

func TestNameKey(t *testing.T) {
	assert.Equal(t, "jane doe", NameKey("  Jane   DOE "))
	assert.Equal(t, NameKey("Jane Doe"), NameKey("jane doe"))
}
