// Package auth handles staff login and the lab_session cookie.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Role gates what a session can reach.
type Role string

const (
	// RoleAdmin manages records on every sheet.
	RoleAdmin Role = "admin"
	// RoleUBS only sees the public read-only view.
	RoleUBS Role = "ubs"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUBS
}

// Allows reports whether r satisfies a route requiring need. Admin satisfies
// every role.
func (r Role) Allows(need Role) bool {
	return r == RoleAdmin || r == need
}

var ErrInvalidCredentials = errors.New("invalid email or password")

// User is a configured login.
type User struct {
	Email        string
	Role         Role
	PasswordHash string
}

// ParseUsers reads comma-separated "email|role|bcrypt-hash" entries.
func ParseUsers(list string) ([]User, error) {
	var (
		users []User
		errs  []string
		seen  = map[string]bool{}
	)
	for i, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.Split(raw, "|")
		if len(parts) != 3 {
			errs = append(errs, fmt.Sprintf("entry %d: want email|role|hash", i+1))
			continue
		}
		u := User{
			Email:        strings.ToLower(strings.TrimSpace(parts[0])),
			Role:         Role(strings.ToLower(strings.TrimSpace(parts[1]))),
			PasswordHash: strings.TrimSpace(parts[2]),
		}
		switch {
		case u.Email == "":
			errs = append(errs, fmt.Sprintf("entry %d: empty email", i+1))
		case !u.Role.Valid():
			errs = append(errs, fmt.Sprintf("entry %d: unknown role %q", i+1, u.Role))
		case seen[u.Email]:
			errs = append(errs, fmt.Sprintf("entry %d: duplicate email %s", i+1, u.Email))
		default:
			if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
				errs = append(errs, fmt.Sprintf("entry %d: bad bcrypt hash", i+1))
				continue
			}
			seen[u.Email] = true
			users = append(users, u)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("parse users: %s", strings.Join(errs, "; "))
	}
	return users, nil
}

// Directory checks passwords against configured users.
type Directory struct {
	users map[string]User
	dummy []byte
}

// NewDirectory indexes users by lowercased email.
func NewDirectory(users []User) *Directory {
	d := &Directory{users: make(map[string]User, len(users))}
	for _, u := range users {
		d.users[strings.ToLower(u.Email)] = u
	}
	// Compared against for unknown emails so both paths cost one bcrypt.
	d.dummy, _ = bcrypt.GenerateFromPassword([]byte("labtrack-dummy"), bcrypt.MinCost)
	return d
}

// Len reports how many users are configured.
func (d *Directory) Len() int { return len(d.users) }

// Authenticate returns the user for a matching email and password.
func (d *Directory) Authenticate(email, password string) (User, error) {
	u, ok := d.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(d.dummy, []byte(password))
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}
