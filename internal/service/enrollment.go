// Package service implements account registration, course assignment and
// credential verification on top of the record store.
package service

import (
	"context"
	"strings"

	"github.com/atinyakov/EnrollKeeper/internal/catalog"
	"github.com/atinyakov/EnrollKeeper/internal/models"
	"github.com/atinyakov/EnrollKeeper/internal/store"
	"go.uber.org/zap"
)

// Commit messages recorded in the replicated history.
const (
	MessageAccountRegistered = "Добавлен новый пользователь"
	MessageCourseAssigned    = "Выдан курс"
)

// RecordStore defines the persistence operations needed by the service.
type RecordStore interface {
	// View reads a whole collection; a missing collection is its zero value.
	View(ctx context.Context, c store.Collection, v any) error
	// Update runs load-mutate-save on one collection as a serialized step.
	// Nothing is written when fn returns an error.
	Update(ctx context.Context, c store.Collection, v any, fn func() error) error
	// Location names the durable resource of a collection.
	Location(c store.Collection) string
}

// Protector converts secrets to stored tokens and checks them.
type Protector interface {
	Protect(secret string) (string, error)
	Validate(secret, token string) (bool, error)
	// Reversible reports whether the active strategy can reveal secrets.
	Reversible() bool
}

// Replicator mirrors changed resources to external history without blocking.
type Replicator interface {
	Replicate(paths []string, message string)
}

// Result is the outcome of VerifyAndList.
type Result struct {
	// Matched is false for an unknown username and for a wrong secret alike.
	Matched bool `json:"matched"`
	// Enrollments is empty unless Matched.
	Enrollments []models.Enrollment `json:"enrollments"`
}

// EnrollmentService implements the account and enrollment use cases.
type EnrollmentService struct {
	store     RecordStore
	protector Protector
	relay     Replicator
	log       *zap.Logger
}

// NewEnrollmentService wires the service. relay may be nil to disable
// replication.
func NewEnrollmentService(rs RecordStore, p Protector, relay Replicator, log *zap.Logger) *EnrollmentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &EnrollmentService{store: rs, protector: p, relay: relay, log: log}
}

// Register creates an account with the next free id. The secret is stored
// only in protected form.
func (s *EnrollmentService) Register(ctx context.Context, username, secret string) (models.Account, error) {
	if blank(username) || secret == "" {
		return models.Account{}, ErrInvalidInput
	}

	// Protect outside the collection lock; hashing is the slow part.
	token, err := s.protector.Protect(secret)
	if err != nil {
		return models.Account{}, err
	}

	var (
		accounts models.Accounts
		created  models.Account
	)
	err = s.store.Update(ctx, store.Accounts, &accounts, func() error {
		if _, ok := accounts.Find(username); ok {
			return ErrDuplicateUsername
		}
		created = models.Account{ID: accounts.NextID(), Username: username, ProtectedSecret: token}
		accounts = append(accounts, created)
		return nil
	})
	if err != nil {
		return models.Account{}, storeErr(err)
	}

	s.log.Info("account registered", zap.String("username", username), zap.Int64("id", created.ID))
	s.replicate(store.Accounts, MessageAccountRegistered)
	return created, nil
}

// AssignEnrollment issues course to an existing account. An empty price is
// stored as models.UnspecifiedPrice.
func (s *EnrollmentService) AssignEnrollment(ctx context.Context, username, course, price string) (models.Enrollment, error) {
	if blank(username) || blank(course) {
		return models.Enrollment{}, ErrInvalidInput
	}

	var accounts models.Accounts
	if err := s.store.View(ctx, store.Accounts, &accounts); err != nil {
		return models.Enrollment{}, storeErr(err)
	}
	if _, ok := accounts.Find(username); !ok {
		return models.Enrollment{}, ErrAccountNotFound
	}

	if price == "" {
		price = models.UnspecifiedPrice
	}
	entry := models.Enrollment{
		Course:      course,
		Description: catalog.Describe(course),
		Price:       price,
	}

	var enrollments models.Enrollments
	err := s.store.Update(ctx, store.Enrollments, &enrollments, func() error {
		if enrollments.Has(username, course) {
			return ErrDuplicateEnrollment
		}
		if enrollments == nil {
			enrollments = models.Enrollments{}
		}
		enrollments[username] = append(enrollments[username], entry)
		return nil
	})
	if err != nil {
		return models.Enrollment{}, storeErr(err)
	}

	s.log.Info("course assigned", zap.String("username", username), zap.String("course", course))
	s.replicate(store.Enrollments, MessageCourseAssigned)
	return entry, nil
}

// VerifyAndList checks secret against the stored token of username and, on
// a match, returns the account's enrollments. An unknown username and a wrong
// secret give the same empty result. An empty secret is rejected unless the
// active strategy is reversible.
func (s *EnrollmentService) VerifyAndList(ctx context.Context, username, secret string) (Result, error) {
	noMatch := Result{Enrollments: []models.Enrollment{}}

	if blank(username) || (secret == "" && !s.protector.Reversible()) {
		return noMatch, ErrInvalidInput
	}

	var accounts models.Accounts
	if err := s.store.View(ctx, store.Accounts, &accounts); err != nil {
		return noMatch, storeErr(err)
	}
	account, ok := accounts.Find(username)
	if !ok {
		return noMatch, nil
	}

	ok, err := s.protector.Validate(secret, account.ProtectedSecret)
	if err != nil {
		s.log.Warn("stored credential unreadable", zap.String("username", username), zap.Error(err))
		return noMatch, nil
	}
	if !ok {
		return noMatch, nil
	}

	var enrollments models.Enrollments
	if err := s.store.View(ctx, store.Enrollments, &enrollments); err != nil {
		return noMatch, storeErr(err)
	}
	list := enrollments[username]
	if list == nil {
		list = []models.Enrollment{}
	}
	return Result{Matched: true, Enrollments: list}, nil
}

// Courses lists the catalog.
func (s *EnrollmentService) Courses() []string {
	return catalog.Courses()
}

func (s *EnrollmentService) replicate(c store.Collection, message string) {
	if s.relay == nil {
		return
	}
	s.relay.Replicate([]string{s.store.Location(c)}, message)
}

func blank(v string) bool {
	return strings.TrimSpace(v) == ""
}
