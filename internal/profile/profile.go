package profile

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Role is compared by exact string equality; there is no hierarchy.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Profile is the application record describing a subject.
// One profile exists per subject, keyed by the subject identifier.
type Profile struct {
	Subject     string `json:"subject" validate:"required"`
	Role        Role   `json:"role" validate:"required"`
	Status      string `json:"status" validate:"required"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty" validate:"omitempty,url"`
	PhotoURL    string `json:"photo_url,omitempty" validate:"omitempty,url"`
	Verified    bool   `json:"verified"`
	Country     string `json:"country,omitempty"`
	Locale      string `json:"locale,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the fixed schema. A document failing validation
// is treated by stores as if it did not exist.
func (p *Profile) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("profile: invalid document: %w", err)
	}
	return nil
}

// HasRole reports whether the profile carries exactly role r.
func (p *Profile) HasRole(r Role) bool {
	return p != nil && p.Role == r
}

// Decode parses a stored document. Unknown fields are ignored.
// The subject key is authoritative over any subject inside the document.
func Decode(subject string, raw []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("profile: failed to unmarshal: %w", err)
	}
	p.Subject = subject
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Encode serializes the profile to its stored document form.
func Encode(p Profile) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("profile: failed to marshal: %w", err)
	}
	return data, nil
}
