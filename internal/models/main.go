// Package models defines the core data structures for accounts and enrollments.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/atinyakov/EnrollKeeper/internal/catalog"
)

// UnspecifiedPrice is stored when an enrollment is assigned without a price.
const UnspecifiedPrice = "unspecified"

// Account represents a registered user with protected credentials.
type Account struct {
	// ID is the unique, never reused identifier of the account.
	ID int64 `json:"id"`
	// Username is the login name chosen by the user.
	Username string `json:"username"`
	// ProtectedSecret is the tagged token produced by the credential protector.
	ProtectedSecret string `json:"password"`
}

// Enrollment is a single course issued to an account.
type Enrollment struct {
	// Course identifies a catalog course.
	Course string `json:"course"`
	// Description is copied from the catalog when the course is assigned.
	Description string `json:"description"`
	// Price is the caller-supplied price label.
	Price string `json:"price"`
	// Progress is always 0 at creation.
	Progress int `json:"progress"`
}

// UnmarshalJSON accepts both the entry object and the older bare course
// name, which is upgraded using the catalog description.
func (e *Enrollment) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var course string
		if err := json.Unmarshal(data, &course); err != nil {
			return err
		}
		*e = Enrollment{
			Course:      course,
			Description: catalog.Describe(course),
			Price:       UnspecifiedPrice,
		}
		return nil
	}
	if len(data) == 0 || data[0] != '{' {
		return fmt.Errorf("enrollment: unexpected JSON %q", data)
	}

	type plain Enrollment
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Enrollment(p)
	return nil
}

// Accounts is the full accounts collection in storage order.
type Accounts []Account

// Find returns the account with the given username.
func (a Accounts) Find(username string) (Account, bool) {
	for _, acc := range a {
		if acc.Username == username {
			return acc, true
		}
	}
	return Account{}, false
}

// NextID returns max(existing ids) + 1.
func (a Accounts) NextID() int64 {
	var maxID int64
	for _, acc := range a {
		if acc.ID > maxID {
			maxID = acc.ID
		}
	}
	return maxID + 1
}

// Enrollments maps a username to the courses issued to it.
type Enrollments map[string][]Enrollment

// Has reports whether course was already issued to username.
func (e Enrollments) Has(username, course string) bool {
	for _, en := range e[username] {
		if en.Course == course {
			return true
		}
	}
	return false
}
