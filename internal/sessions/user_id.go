package sessions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/callroom/broker/internal/providers"
)

// UserID is a client-supplied user id: a JSON string or a non-negative 32-bit integer.
// Integers select numeric-slot addressing at the provider and are stored as decimal text.
type UserID struct {
	Value   string
	Numeric bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *UserID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*u = UserID{}
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*u = UserID{Value: strings.TrimSpace(s)}
		return nil
	}
	n, err := strconv.ParseUint(string(b), 10, 32)
	if err != nil {
		return fmt.Errorf("user id must be a string or a non-negative 32-bit integer, got %s", b)
	}
	*u = UserID{Value: strconv.FormatUint(n, 10), Numeric: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (u UserID) MarshalJSON() ([]byte, error) {
	if u.Numeric {
		return []byte(u.Value), nil
	}
	return json.Marshal(u.Value)
}

// IsZero reports whether no id was supplied.
func (u UserID) IsZero() bool { return u.Value == "" }

// or returns u, or other when u is empty.
func (u UserID) or(other UserID) UserID {
	if u.IsZero() {
		return other
	}
	return u
}

// subjectFor maps a user id onto provider addressing. Numeric ids use their slot; string ids
// use identity addressing, except "" and "0" which let the provider assign a slot.
func subjectFor(id string, numeric bool) providers.Subject {
	if numeric {
		if n, err := strconv.ParseUint(id, 10, 32); err == nil {
			return providers.UIDSubject(uint32(n))
		}
	}
	return providers.SubjectForUser(id)
}
