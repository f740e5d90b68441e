package application

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartline/user-service/internal/domain/entity"
	"github.com/cartline/user-service/internal/domain/errs"
	repo "github.com/cartline/user-service/internal/domain/repository"
	"github.com/cartline/user-service/pkg/helpers"
)

// memRepo is an in-memory UserRepository with the same error taxonomy as the
// mongo adapter, including the unique-email constraint.
type memRepo struct {
	mu    sync.Mutex
	byID  map[string]*entity.User
	email map[string]string // normalized email -> id
}

func newMemRepo() *memRepo {
	return &memRepo{byID: map[string]*entity.User{}, email: map[string]string{}}
}

func (m *memRepo) Insert(_ context.Context, u *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.email[u.Email]; taken {
		return errs.ErrDuplicateKey
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	m.byID[u.ID] = &cp
	m.email[u.Email] = u.ID
	return nil
}

func (m *memRepo) get(id string) (*entity.User, error) {
	u, ok := m.byID[id]
	if !ok || u.Deleted {
		return nil, errs.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) FindByID(_ context.Context, id string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *memRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.email[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return m.get(id)
}

func (m *memRepo) Update(_ context.Context, id string, upd repo.UserUpdate) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || u.Deleted {
		return nil, errs.ErrNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.AvatarURL != nil {
		u.AvatarURL = *upd.AvatarURL
	}
	u.UpdatedAt = u.UpdatedAt.Add(time.Millisecond) // strictly increasing
	cp := *u
	return &cp, nil
}

func (m *memRepo) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || u.Deleted {
		return errs.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = u.UpdatedAt.Add(time.Millisecond)
	return nil
}

func (m *memRepo) SoftDelete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || u.Deleted {
		return errs.ErrNotFound
	}
	u.Deleted = true
	u.UpdatedAt = u.UpdatedAt.Add(time.Millisecond)
	return nil
}

func testService() (*Service, *memRepo) {
	r := newMemRepo()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	jwt := helpers.NewJWTManager("test-access-secret", "test-refresh-secret", time.Hour, 24*time.Hour)
	return NewService(r, jwt, logger), r
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	p, err := svc.Register(ctx, "Alice@Example.COM", "correct horse", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", p.Email, "email is stored normalized")
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, []string{"user"}, p.Roles)

	// login works with any casing of the same email
	lp, pair, err := svc.Login(ctx, "  ALICE@example.com ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, p.ID, lp.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.True(t, pair.AccessTokenExpiry.After(time.Now()))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "bob@example.com", "password1", "Bob")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "BOB@example.com", "password2", "Robert")
	require.Error(t, err)
	assert.Equal(t, errs.CodeEmailTaken, errs.CodeOf(err))
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "password1", "X")
	assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))

	_, err = svc.Register(ctx, "short@example.com", "short", "X")
	assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))
}

func TestLoginIndistinguishableFailures(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "carol@example.com", "password1", "Carol")
	require.NoError(t, err)

	// unknown email and wrong password produce the exact same error value
	_, _, errUnknown := svc.Login(ctx, "nobody@example.com", "password1")
	_, _, errWrongPw := svc.Login(ctx, "carol@example.com", "wrongpass")
	assert.Equal(t, errs.ErrInvalidCredentials, errUnknown)
	assert.Equal(t, errs.ErrInvalidCredentials, errWrongPw)
}

func TestProfileNeverCarriesPasswordHash(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	p, err := svc.Register(ctx, "dave@example.com", "password1", "Dave")
	require.NoError(t, err)

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "password")
	assert.NotContains(t, string(b), "hash")
}

func TestGetProfileUnknownID(t *testing.T) {
	svc, _ := testService()
	_, err := svc.GetProfile(context.Background(), "does-not-exist")
	assert.Equal(t, errs.CodeNotFound, errs.CodeOf(err))
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	p, err := svc.Register(ctx, "erin@example.com", "password1", "Erin")
	require.NoError(t, err)

	name := "Erin Q."
	up, err := svc.UpdateProfile(ctx, p.ID, UpdateProfileInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Erin Q.", up.Name)
	assert.True(t, up.UpdatedAt.After(p.UpdatedAt), "updated_at advances on every write")

	// empty patch is a validation error
	_, err = svc.UpdateProfile(ctx, p.ID, UpdateProfileInput{})
	assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))

	// blank name is rejected
	blank := "   "
	_, err = svc.UpdateProfile(ctx, p.ID, UpdateProfileInput{Name: &blank})
	assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))

	// unknown id
	_, err = svc.UpdateProfile(ctx, "no-such-id", UpdateProfileInput{Name: &name})
	assert.Equal(t, errs.CodeNotFound, errs.CodeOf(err))
}

func TestChangePassword(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	p, err := svc.Register(ctx, "frank@example.com", "oldpassword", "Frank")
	require.NoError(t, err)

	// wrong current credential
	err = svc.ChangePassword(ctx, p.ID, "nope", "newpassword")
	assert.Equal(t, errs.CodeInvalidCredentials, errs.CodeOf(err))

	// too-short replacement
	err = svc.ChangePassword(ctx, p.ID, "oldpassword", "tiny")
	assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))

	require.NoError(t, svc.ChangePassword(ctx, p.ID, "oldpassword", "newpassword"))

	_, _, err = svc.Login(ctx, "frank@example.com", "oldpassword")
	assert.Equal(t, errs.ErrInvalidCredentials, err)
	_, _, err = svc.Login(ctx, "frank@example.com", "newpassword")
	assert.NoError(t, err)
}

func TestDeactivateHidesUser(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	p, err := svc.Register(ctx, "gina@example.com", "password1", "Gina")
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, p.ID))

	_, err = svc.GetProfile(ctx, p.ID)
	assert.Equal(t, errs.CodeNotFound, errs.CodeOf(err))

	// deactivated accounts cannot log in, and the failure is the generic one
	_, _, err = svc.Login(ctx, "gina@example.com", "password1")
	assert.Equal(t, errs.ErrInvalidCredentials, err)

	// deactivating twice is NotFound
	err = svc.Deactivate(ctx, p.ID)
	assert.Equal(t, errs.CodeNotFound, errs.CodeOf(err))
}

func TestRefreshRotatesTokens(t *testing.T) {
	svc, r := testService()
	ctx := context.Background()

	p, err := svc.Register(ctx, "hugo@example.com", "password1", "Hugo")
	require.NoError(t, err)
	_, pair, err := svc.Login(ctx, "hugo@example.com", "password1")
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.AccessToken)

	claims, err := svc.JWT.ParseAccessToken(rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, p.ID, claims.UserID)

	// an access token is not accepted as a refresh token
	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.Equal(t, errs.ErrInvalidCredentials, err)

	// refresh stops working once the account is deactivated
	require.NoError(t, r.SoftDelete(ctx, p.ID))
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.Equal(t, errs.ErrInvalidCredentials, err)
}

// brokenRepo simulates an unreachable store on the email lookup path.
type brokenRepo struct {
	*memRepo
}

func (b *brokenRepo) FindByEmail(context.Context, string) (*entity.User, error) {
	return nil, errs.ErrStorageUnavailable
}

func TestLoginStorageFailureIsNotUnauthorized(t *testing.T) {
	svc, r := testService()
	svc.Repo = &brokenRepo{memRepo: r}

	_, _, err := svc.Login(context.Background(), "any@example.com", "password1")
	require.Error(t, err)
	assert.Equal(t, errs.CodeStorageUnavailable, errs.CodeOf(err))
	assert.NotEqual(t, errs.CodeInvalidCredentials, errs.CodeOf(err))
}

func TestSearchUsersWithoutESIsEmpty(t *testing.T) {
	svc, _ := testService()
	out, err := svc.SearchUsers(context.Background(), "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@b.co", NormalizeEmail("  A@B.Co "))
	assert.Equal(t, "a@b.co", NormalizeEmail("a@b.co"))
}
