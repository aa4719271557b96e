// Package model defines domain entities for the application.
package model

import (
	"fmt"
	"time"
)

// Field limits for Mango records.
const (
	MaxMangoNameLength  = 100
	MaxMangoColorLength = 100
)

// Mango is the sole domain entity: a named, colored fruit owned by one user.
type Mango struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Ripe      bool      `json:"ripe"`
	Color     string    `json:"color"`
	OwnerID   string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOwnedBy reports whether userID owns the mango.
func (m *Mango) IsOwnedBy(userID string) bool {
	return userID != "" && m.OwnerID == userID
}

// String returns a human readable description of the mango.
func (m *Mango) String() string {
	return fmt.Sprintf("The mango named '%s' is %s in color. It is %t that it is ripe.", m.Name, m.Color, m.Ripe)
}

// MangoFields holds a set of client-writable mango fields.
// A nil pointer means the field was not supplied.
type MangoFields struct {
	Name  *string
	Ripe  *bool
	Color *string
}

// IsEmpty returns true if no field is set.
func (f MangoFields) IsEmpty() bool {
	return f.Name == nil && f.Ripe == nil && f.Color == nil
}

// ApplyTo merges the supplied fields into m. Unset fields are left untouched.
func (f MangoFields) ApplyTo(m *Mango) {
	if f.Name != nil {
		m.Name = *f.Name
	}
	if f.Ripe != nil {
		m.Ripe = *f.Ripe
	}
	if f.Color != nil {
		m.Color = *f.Color
	}
}
