package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/include-portal/users-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sub = "11111111-1111-4111-1111-111111111111"

// countingRepo wraps a repository and records how often the store is touched.
type countingRepo struct {
	UserRepository
	calls int
}

func (c *countingRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	c.calls++
	return c.UserRepository.Create(ctx, u)
}

func (c *countingRepo) GetBySub(ctx context.Context, s string) (*models.User, error) {
	c.calls++
	return c.UserRepository.GetBySub(ctx, s)
}

func (c *countingRepo) UpdateBySub(ctx context.Context, s string, m MutateFunc) (*models.User, error) {
	c.calls++
	return c.UserRepository.UpdateBySub(ctx, s, m)
}

func (c *countingRepo) DeleteBySub(ctx context.Context, s string, soft bool, at time.Time) error {
	c.calls++
	return c.UserRepository.DeleteBySub(ctx, s, soft, at)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestService(opts ...Option) (*Service, *countingRepo, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	repo := &countingRepo{UserRepository: NewMemoryUserRepository()}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewService(repo, opts...), repo, clock
}

func attrs(t *testing.T, doc string) *models.Attributes {
	t.Helper()
	a, err := models.DecodeAttributes([]byte(doc))
	require.NoError(t, err)
	return a
}

func TestCreateUser(t *testing.T) {
	svc, repo, clock := newTestService()
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, sub, attrs(t, `{"first_name": "Ada", "accepted_terms": true}`))
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, sub, u.KeycloakID)
	assert.Equal(t, "Ada", *u.FirstName)
	assert.True(t, u.AcceptedTerms)
	assert.False(t, u.Deleted)
	assert.False(t, u.CompletedRegistration)
	assert.Equal(t, clock.t, u.CreationDate)
	assert.Equal(t, u.CreationDate, u.UpdatedDate)
	assert.JSONEq(t, `{}`, string(u.Config))
	assert.Equal(t, 1, repo.calls)
}

func TestCreateUserTwice(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, sub, attrs(t, `{}`))
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, sub, attrs(t, `{"first_name": "Ada"}`))
	require.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, KindAlreadyExists, KindOf(err))
}

func TestCreateUserValidationNeverTouchesStore(t *testing.T) {
	cases := map[string]struct {
		sub string
		doc string
	}{
		"missing subject": {sub: "", doc: `{"first_name": "Ada"}`},
		"subject not uuid": {sub: "not-a-uuid", doc: `{}`},
		"bad email":        {sub: sub, doc: `{"email": "nope"}`},
		"long role":        {sub: sub, doc: fmt.Sprintf(`{"roles": ["researcher", %q]}`, strings.Repeat("r", models.RoleMaxLength+1))},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc, repo, _ := newTestService()
			_, err := svc.CreateUser(context.Background(), tc.sub, attrs(t, tc.doc))
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
			assert.Equal(t, 0, repo.calls)
		})
	}
}

func TestCreateUserMissingSubjectIsMissingRequiredField(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CreateUser(context.Background(), "", nil)
	fe, ok := models.AsFieldError(err)
	require.True(t, ok)
	assert.Equal(t, models.CodeMissingRequiredField, fe.Code)
	assert.Equal(t, "keycloak_id", fe.Field)
}

func TestCreateUserLongRoleIsRoleError(t *testing.T) {
	svc, _, _ := newTestService()
	doc := fmt.Sprintf(`{"roles": [%q, "researcher"]}`, strings.Repeat("x", models.RoleMaxLength+1))
	_, err := svc.CreateUser(context.Background(), sub, attrs(t, doc))
	fe, ok := models.AsFieldError(err)
	require.True(t, ok)
	assert.Equal(t, "roles", fe.Field)
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, sub, attrs(t, `{
		"first_name": "Ada",
		"last_name": "Lovelace",
		"public_email": "",
		"linkedin": " ",
		"external_individual_email": "",
		"roles": ["researcher"],
		"research_domains": ["rare diseases"],
		"locale": "en",
		"config": {"dashboard": {"cards": 3}}
	}`))
	require.NoError(t, err)

	got, err := svc.GetUser(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Nil(t, got.PublicEmail)
	assert.Nil(t, got.Linkedin)
	assert.Nil(t, got.ExternalIndividualEmail)
	assert.Equal(t, []string{"researcher"}, []string(got.Roles))
	assert.Equal(t, models.LocaleEN, *got.Locale)
	assert.JSONEq(t, `{"dashboard": {"cards": 3}}`, string(got.Config))
}

func TestGetUserIdempotent(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, sub, attrs(t, `{"first_name": "Ada"}`))
	require.NoError(t, err)

	a, err := svc.GetUser(ctx, sub)
	require.NoError(t, err)
	b, err := svc.GetUser(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGetUserNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.GetUser(context.Background(), sub)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestUpdateUser(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	created, err := svc.CreateUser(ctx, sub, attrs(t, `{"first_name": "Ada", "linkedin": "https://www.linkedin.com/in/ada"}`))
	require.NoError(t, err)
	repo.calls = 0

	updated, err := svc.UpdateUser(ctx, sub, attrs(t, `{"last_name": "Lovelace", "linkedin": ""}`))
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, "Ada", *updated.FirstName)
	assert.Equal(t, "Lovelace", *updated.LastName)
	assert.Nil(t, updated.Linkedin)
	assert.Equal(t, created.CreationDate, updated.CreationDate)
	assert.True(t, updated.UpdatedDate.After(created.UpdatedDate))

	got, err := svc.GetUser(ctx, sub)
	require.NoError(t, err)
	assert.Nil(t, got.Linkedin)
}

func TestUpdateUserRevalidatesMergedRecord(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, sub, attrs(t, `{"first_name": "Ada"}`))
	require.NoError(t, err)

	_, err = svc.UpdateUser(ctx, sub, attrs(t, `{"first_name": "Grace", "email": "not-an-email"}`))
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	got, err := svc.GetUser(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, "Ada", *got.FirstName)
	assert.Nil(t, got.Email)
}

func TestUpdateUserNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.UpdateUser(context.Background(), sub, attrs(t, `{"first_name": "Ada"}`))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentDisjointUpdates(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, sub, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, doc := range []string{`{"first_name": "Ada"}`, `{"affiliation": "Analytical Engine Society"}`} {
		a := attrs(t, doc)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.UpdateUser(ctx, sub, a)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := svc.GetUser(ctx, sub)
	require.NoError(t, err)
	require.NotNil(t, got.FirstName)
	require.NotNil(t, got.Affiliation)
	assert.Equal(t, "Ada", *got.FirstName)
	assert.Equal(t, "Analytical Engine Society", *got.Affiliation)
}

func TestCompleteRegistration(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, sub, nil)
	require.NoError(t, err)

	u, err := svc.CompleteRegistration(ctx, sub, attrs(t, `{"understand_disclaimer": true}`))
	require.NoError(t, err)
	assert.True(t, u.CompletedRegistration)
	assert.True(t, u.UnderstandDisclaimer)
}

func TestSetProfileImageKey(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, sub, nil)
	require.NoError(t, err)

	u, err := svc.SetProfileImageKey(ctx, sub, "profile-images/abc")
	require.NoError(t, err)
	assert.Equal(t, "profile-images/abc", *u.ProfileImageKey)
}

func TestDeleteUserSoft(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, sub, nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, sub))

	_, err = svc.GetUser(ctx, sub)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, svc.DeleteUser(ctx, sub), ErrNotFound)

	// the subject keeps its key after a soft delete
	_, err = svc.CreateUser(ctx, sub, nil)
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestDeleteUserHard(t *testing.T) {
	svc, _, _ := newTestService(WithDeleteMode(DeleteHard))
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, sub, nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, sub))
	_, err = svc.GetUser(ctx, sub)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.CreateUser(ctx, sub, nil)
	require.NoError(t, err)
}

func TestDeleteUserNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	require.ErrorIs(t, svc.DeleteUser(context.Background(), sub), ErrNotFound)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("wrapped: %w", ErrNotFound)))
	assert.Equal(t, KindAlreadyExists, KindOf(alreadyExists()))
	assert.Equal(t, KindAlreadyExists, KindOf(models.DuplicateUniqueKey("keycloak_id")))
	assert.Equal(t, KindValidation, KindOf(models.PatternMismatch("email", "x")))
	assert.Equal(t, KindValidation, KindOf(fmt.Errorf("%w: eof", models.ErrMalformedDocument)))
	assert.Equal(t, KindStore, KindOf(ErrConcurrentUpdate))
	assert.Equal(t, KindStore, KindOf(errors.New("connection refused")))
}

func TestDeleteUserSoftStampsServiceClock(t *testing.T) {
	svc, repo, clock := newTestService()
	ctx := context.Background()
	created, err := svc.CreateUser(ctx, sub, nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, sub))

	mem := repo.UserRepository.(*MemoryUserRepository)
	stored := mem.store[sub]
	require.True(t, stored.Deleted)
	assert.Equal(t, clock.t, stored.UpdatedDate)
	assert.True(t, stored.UpdatedDate.After(created.UpdatedDate))
}
