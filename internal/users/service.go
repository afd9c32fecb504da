package users

import (
	"context"
	"time"

	"github.com/include-portal/users-api/internal/models"
	"github.com/include-portal/users-api/pkg/logger"
)

// DeleteMode selects what DeleteUser does to the stored record.
type DeleteMode string

const (
	DeleteSoft DeleteMode = "soft"
	DeleteHard DeleteMode = "hard"
)

// Service encapsulates user-related business logic. Every operation is
// keyed by the identity provider's subject identifier.
type Service struct {
	repo       UserRepository
	deleteMode DeleteMode
	now        func() time.Time
}

type Option func(*Service)

// WithDeleteMode sets the delete policy; the default is DeleteSoft.
func WithDeleteMode(m DeleteMode) Option {
	return func(s *Service) { s.deleteMode = m }
}

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(r UserRepository, opts ...Option) *Service {
	s := &Service{repo: r, deleteMode: DeleteSoft, now: models.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetUser returns the record for sub or ErrNotFound.
func (s *Service) GetUser(ctx context.Context, sub string) (*models.User, error) {
	return s.repo.GetBySub(ctx, sub)
}

// CreateUser builds a record for sub from attrs and persists it. Validation
// failures are returned before the store is touched.
func (s *Service) CreateUser(ctx context.Context, sub string, attrs *models.Attributes) (*models.User, error) {
	u := models.NewUserAt(sub, s.now())
	if attrs != nil {
		attrs.ApplyTo(u)
	}
	if err := u.Prepare(); err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, u)
	if err != nil {
		return nil, err
	}
	logger.Debugw("user created", "keycloak_id", sub, "id", created.ID)
	return created, nil
}

// UpdateUser merges attrs over the stored record, re-validates the whole
// merged record and advances updated_date.
func (s *Service) UpdateUser(ctx context.Context, sub string, attrs *models.Attributes) (*models.User, error) {
	return s.repo.UpdateBySub(ctx, sub, s.merge(attrs, nil))
}

// CompleteRegistration is UpdateUser that also sets completed_registration.
func (s *Service) CompleteRegistration(ctx context.Context, sub string, attrs *models.Attributes) (*models.User, error) {
	return s.repo.UpdateBySub(ctx, sub, s.merge(attrs, func(u *models.User) {
		u.CompletedRegistration = true
	}))
}

// SetProfileImageKey records the object key of the user's profile image.
func (s *Service) SetProfileImageKey(ctx context.Context, sub, key string) (*models.User, error) {
	return s.repo.UpdateBySub(ctx, sub, s.merge(nil, func(u *models.User) {
		u.ProfileImageKey = &key
	}))
}

func (s *Service) merge(attrs *models.Attributes, extra func(*models.User)) MutateFunc {
	return func(u *models.User) error {
		if attrs != nil {
			attrs.ApplyTo(u)
		}
		if extra != nil {
			extra(u)
		}
		now := s.now()
		if !now.After(u.UpdatedDate) {
			now = u.UpdatedDate.Add(time.Millisecond)
		}
		u.UpdatedDate = now
		return u.Prepare()
	}
}

// DeleteUser removes the record for sub according to the delete mode.
func (s *Service) DeleteUser(ctx context.Context, sub string) error {
	if err := s.repo.DeleteBySub(ctx, sub, s.deleteMode != DeleteHard, s.now()); err != nil {
		return err
	}
	logger.Debugw("user deleted", "keycloak_id", sub, "mode", string(s.deleteMode))
	return nil
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
