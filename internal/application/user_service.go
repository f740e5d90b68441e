package application

import (
	"context"
	"encoding/json"
	"io"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cartline/user-service/internal/domain/entity"
	"github.com/cartline/user-service/internal/domain/errs"
	repo "github.com/cartline/user-service/internal/domain/repository"
	"github.com/cartline/user-service/pkg/helpers"
	"github.com/cartline/user-service/pkg/mailer"
)

// MinPasswordLen mirrors the `pwd` binding alias; the service re-checks it so
// the invariant holds no matter which transport called in.
const MinPasswordLen = 8

// dummyHash keeps the bcrypt timing class identical for unknown emails.
var dummyHash, _ = helpers.HashPassword("user-service.timing.pad")

type Service struct {
	Repo         repo.UserRepository
	JWT          *helpers.JWTManager
	Logger       *logrus.Logger
	ES           *elasticsearch.Client
	ESUsersIndex string
	GCS          *storage.Client
	GCSBucket    string
	Pub          *helpers.RabbitPublisher
	AppName      string
	MailEnabled  bool
}

func NewService(r repo.UserRepository, jwt *helpers.JWTManager, logger *logrus.Logger) *Service {
	return &Service{Repo: r, JWT: jwt, Logger: logger}
}

// Profile is the outward projection of a User. It has no password field at
// all, so the hash cannot leak across the HTTP boundary by construction.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toProfile(u *entity.User) *Profile {
	return &Profile{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		Roles:     u.Roles,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// NormalizeEmail lowercases and trims the login identifier. The uniqueness
// constraint applies to this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// Register creates a new account. Duplicate (normalized) emails surface as
// ErrEmailTaken; malformed input as a validation error.
func (s *Service) Register(ctx context.Context, email, password, name string) (*Profile, error) {
	email = NormalizeEmail(email)
	if !validEmail(email) {
		return nil, errs.Validation("email is not valid")
	}
	if len(password) < MinPasswordLen {
		return nil, errs.Validation("password must be at least %d characters", MinPasswordLen)
	}

	hash, err := helpers.HashPassword(password)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "password hashing failed", err)
	}

	u := &entity.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Roles:        []string{"user"},
	}
	if err := s.Repo.Insert(ctx, u); err != nil {
		if errs.IsCode(err, errs.CodeEmailTaken) {
			return nil, errs.ErrEmailTaken
		}
		return nil, err
	}

	s.enqueueEmail(ctx, u, mailer.Welcome)
	s.indexUser(ctx, u)
	return toProfile(u), nil
}

// Authenticate validates email/password. Unknown email and wrong password are
// indistinguishable to the caller, in outcome and in timing class.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	u, err := s.Repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil || u == nil {
		// storage failures are not a credential problem
		if err != nil && !errs.IsCode(err, errs.CodeNotFound) {
			return nil, err
		}
		helpers.CompareHashAndPassword(dummyHash, password)
		return nil, errs.ErrInvalidCredentials
	}
	if !helpers.CompareHashAndPassword(u.PasswordHash, password) {
		return nil, errs.ErrInvalidCredentials
	}
	return u, nil
}

// IssueTokens generates a stateless access/refresh pair bound to the user id
// and roles. No server-side session is recorded; any replica can verify.
func (s *Service) IssueTokens(u *entity.User) (TokenPair, error) {
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID, u.Roles)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		return TokenPair{}, errs.Wrap(errs.CodeInternal, "token generation failed", err)
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID, u.Roles)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate refresh token failed")
		return TokenPair{}, errs.Wrap(errs.CodeInternal, "token generation failed", err)
	}
	return TokenPair{
		AccessToken:        access,
		AccessTokenExpiry:  aexp,
		RefreshToken:       refresh,
		RefreshTokenExpiry: rexp,
	}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Profile, TokenPair, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.IssueTokens(u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return toProfile(u), pair, nil
}

// Refresh rotates the token pair. The user is re-fetched so revoked accounts
// and role changes take effect on rotation.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, errs.ErrInvalidCredentials
	}
	u, err := s.Repo.FindByID(ctx, claims.UserID)
	if err != nil || u == nil {
		return TokenPair{}, errs.ErrInvalidCredentials
	}
	return s.IssueTokens(u)
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.Repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toProfile(u), nil
}

type UpdateProfileInput struct {
	Name      *string
	AvatarURL *string
}

// UpdateProfile mutates only the mutable fields; updated_at is refreshed by
// the adapter on every write.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*Profile, error) {
	if in.Name == nil && in.AvatarURL == nil {
		return nil, errs.Validation("no updatable fields provided")
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, errs.Validation("name must not be blank")
	}
	u, err := s.Repo.Update(ctx, userID, repo.UserUpdate{Name: in.Name, AvatarURL: in.AvatarURL})
	if err != nil {
		return nil, err
	}
	s.indexUser(ctx, u)
	return toProfile(u), nil
}

// ChangePassword replaces the stored hash after verifying the current
// credential. The notification email goes through the same queue as welcome
// mail.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < MinPasswordLen {
		return errs.Validation("password must be at least %d characters", MinPasswordLen)
	}
	u, err := s.Repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !helpers.CompareHashAndPassword(u.PasswordHash, current) {
		return errs.ErrInvalidCredentials
	}
	hash, err := helpers.HashPassword(next)
	if err != nil {
		return errs.Wrap(errs.CodeInternal, "password hashing failed", err)
	}
	if err := s.Repo.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	s.enqueueEmail(ctx, u, mailer.PasswordChanged)
	return nil
}

// Deactivate soft-deletes the account; the document stays behind the flag so
// ids referenced by other services keep resolving internally.
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	return s.Repo.SoftDelete(ctx, userID)
}

// UploadAvatar stores the image in GCS and records its public URL.
func (s *Service) UploadAvatar(ctx context.Context, userID string, r io.Reader, filename, contentType string) (*Profile, error) {
	if s.GCS == nil || s.GCSBucket == "" {
		return nil, errs.New(errs.CodeInternal, "avatar storage not configured")
	}
	if _, err := s.Repo.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("avatars", userID, uuid.NewString()+ext))
	url, err := helpers.UploadObject(ctx, s.GCS, s.GCSBucket, objectPath, contentType, r)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "avatar upload failed", err)
	}
	return s.UpdateProfile(ctx, userID, UpdateProfileInput{AvatarURL: &url})
}

func (s *Service) enqueueEmail(ctx context.Context, u *entity.User, template string) {
	if s.Pub == nil || !s.MailEnabled {
		return
	}
	job := mailer.EmailJob{
		To:       u.Email,
		Template: template,
		Data: map[string]any{
			"Name":    u.Name,
			"Email":   u.Email,
			"AppName": s.AppName,
		},
	}
	if err := s.Pub.PublishJSON(ctx, job); err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("email enqueue failed")
	}
}

func (s *Service) indexUser(ctx context.Context, u *entity.User) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return
	}
	doc := map[string]any{
		"id":         u.ID,
		"email":      u.Email,
		"name":       u.Name,
		"avatar_url": u.AvatarURL,
		"created_at": u.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": u.UpdatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: u.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		return
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
}

// SearchUsers performs a simple multi_match search on email and name.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "name"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(
		s.ES.Search.WithContext(c),
		s.ES.Search.WithIndex(s.ESUsersIndex),
		s.ES.Search.WithBody(strings.NewReader(string(b))),
	)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "search failed", err)
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "search decode failed", err)
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
