package application

import (
	"context"
	"mime/multipart"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/trace/noop"

	"tourhub/internal/pkg/apperr"
	"tourhub/internal/pkg/auth"
	"tourhub/internal/service/identity/domain"
)

type fakeUsers struct {
	users  map[int64]*domain.User
	nextID int64
}

func (f *fakeUsers) Create(_ context.Context, u *domain.User) error {
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return apperr.Conflict("duplicate email")
		}
	}
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt = time.Now()
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) FindByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, domain.UserNotFound(id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) Update(_ context.Context, id int64, p domain.UserPatch) error {
	u := f.users[id]
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	if p.Position != nil {
		u.Position = *p.Position
	}
	if p.Description != nil {
		u.Description = *p.Description
	}
	return nil
}

func (f *fakeUsers) List(context.Context) ([]domain.User, error) {
	var out []domain.User
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsers) ListByRole(ctx context.Context, role auth.Role) ([]domain.User, error) {
	all, _ := f.List(ctx)
	var out []domain.User
	for _, u := range all {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) Delete(_ context.Context, id int64) error {
	delete(f.users, id)
	return nil
}

type fakeImages struct{ removed []string }

func (f *fakeImages) Save(category string, fh *multipart.FileHeader) (string, error) {
	return "/images/" + category + "/" + fh.Filename, nil
}

func (f *fakeImages) Remove(p string) error {
	f.removed = append(f.removed, p)
	return nil
}

const adminEmail = "admin@example.com"

type IdentityServiceSuite struct {
	suite.Suite
	ctx    context.Context
	repo   *fakeUsers
	images *fakeImages
	tokens *auth.TokenManager
	svc    *IdentityService
}

func TestIdentityServiceSuite(t *testing.T) {
	suite.Run(t, new(IdentityServiceSuite))
}

func (s *IdentityServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = &fakeUsers{users: map[int64]*domain.User{}}
	s.images = &fakeImages{}
	s.tokens = auth.NewTokenManager("secret", time.Hour)
	s.svc = NewIdentityService(s.repo, s.tokens, s.images, adminEmail, noop.NewTracerProvider().Tracer("test"))
	s.Require().NoError(s.svc.EnsureDefaultAdmin(s.ctx, "admin123"))
}

func (s *IdentityServiceSuite) register(name, email string) *AuthResponse {
	resp, err := s.svc.Register(s.ctx, RegisterRequest{Name: name, Email: email, Password: "secret1"}, nil)
	s.Require().NoError(err)
	return resp
}

func (s *IdentityServiceSuite) TestRegisterAndLogin() {
	resp := s.register("Ann", "Ann@Example.com")
	s.Equal("ann@example.com", resp.User.Email)
	s.Equal("user", resp.User.Role)

	p, err := s.tokens.Verify(resp.Token)
	s.Require().NoError(err)
	s.Equal(resp.User.ID, p.UserID)

	login, err := s.svc.Login(s.ctx, LoginRequest{Email: "ann@example.com", Password: "secret1"})
	s.Require().NoError(err)
	s.Equal(resp.User.ID, login.User.ID)

	_, err = s.svc.Login(s.ctx, LoginRequest{Email: "ann@example.com", Password: "wrong"})
	s.ErrorIs(err, apperr.ErrUnauthorized)
	_, err = s.svc.Login(s.ctx, LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	s.ErrorIs(err, apperr.ErrUnauthorized)
}

func (s *IdentityServiceSuite) TestRegisterRejectsDuplicatesAndBadInput() {
	s.register("Ann", "ann@example.com")

	_, err := s.svc.Register(s.ctx, RegisterRequest{Name: "Ann2", Email: "ANN@example.com", Password: "secret1"}, nil)
	s.ErrorIs(err, apperr.ErrConflict)

	_, err = s.svc.Register(s.ctx, RegisterRequest{Name: "Bob", Email: "not-an-email", Password: "secret1"}, nil)
	s.ErrorIs(err, apperr.ErrValidation)

	_, err = s.svc.Register(s.ctx, RegisterRequest{Name: "Bob", Email: "bob@example.com", Password: "123"}, nil)
	s.ErrorIs(err, apperr.ErrValidation)
}

func (s *IdentityServiceSuite) TestUpdateProfile() {
	resp := s.register("Ann", "ann@example.com")
	p := auth.Principal{UserID: resp.User.ID, Role: auth.RoleUser}

	position := "Lead"
	name := "Anna"
	updated, err := s.svc.UpdateProfile(s.ctx, p, ProfileRequest{Name: &name, Position: &position})
	s.Require().NoError(err)
	s.Equal("Anna", updated.Name)
	s.Empty(updated.Position, "only guides may set a position")

	_, err = s.svc.UpdateProfile(s.ctx, p, ProfileRequest{CurrentPassword: "bad", NewPassword: "newsecret"})
	s.ErrorIs(err, apperr.ErrValidation)

	_, err = s.svc.UpdateProfile(s.ctx, p, ProfileRequest{CurrentPassword: "secret1", NewPassword: "newsecret"})
	s.Require().NoError(err)
	_, err = s.svc.Login(s.ctx, LoginRequest{Email: "ann@example.com", Password: "newsecret"})
	s.NoError(err)

	_, err = s.svc.UpdateProfile(s.ctx, p, ProfileRequest{})
	s.ErrorIs(err, apperr.ErrValidation)

	taken := adminEmail
	_, err = s.svc.UpdateProfile(s.ctx, p, ProfileRequest{Email: &taken})
	s.ErrorIs(err, apperr.ErrConflict)
}

func (s *IdentityServiceSuite) TestGuideProfileFields() {
	resp := s.register("Greta", "greta@example.com")
	_, err := s.svc.UpdateRole(s.ctx, resp.User.ID, "guide")
	s.Require().NoError(err)

	p, err := s.svc.LoadPrincipal(s.ctx, resp.User.ID)
	s.Require().NoError(err)
	s.Equal(auth.RoleGuide, p.Role)

	position, desc := "Mountain guide", "Ten years in the Alps"
	updated, err := s.svc.UpdateProfile(s.ctx, p, ProfileRequest{Position: &position, Description: &desc})
	s.Require().NoError(err)
	s.Equal(position, updated.Position)

	guides, err := s.svc.ListGuides(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(guides, 1)
	s.Equal(desc, guides[0].Description)
}

func (s *IdentityServiceSuite) TestUploadAvatarReplacesOld() {
	resp := s.register("Ann", "ann@example.com")
	p := auth.Principal{UserID: resp.User.ID, Role: auth.RoleUser}

	_, err := s.svc.UploadAvatar(s.ctx, p, &multipart.FileHeader{Filename: "a.png"})
	s.Require().NoError(err)
	updated, err := s.svc.UploadAvatar(s.ctx, p, &multipart.FileHeader{Filename: "b.png"})
	s.Require().NoError(err)
	s.Equal("/images/avatars/b.png", updated.Avatar)
	s.Equal([]string{"/images/avatars/a.png"}, s.images.removed)

	_, err = s.svc.UploadAvatar(s.ctx, p, nil)
	s.ErrorIs(err, apperr.ErrValidation)
}

func (s *IdentityServiceSuite) TestDefaultAdminIsProtected() {
	admin, err := s.repo.FindByEmail(s.ctx, adminEmail)
	s.Require().NoError(err)
	s.Require().NotNil(admin)
	s.Equal(auth.RoleAdmin, admin.Role)

	_, err = s.svc.UpdateRole(s.ctx, admin.ID, "user")
	s.ErrorIs(err, apperr.ErrForbidden)

	other := s.register("Root", "root@example.com")
	_, err = s.svc.UpdateRole(s.ctx, other.User.ID, "admin")
	s.Require().NoError(err)
	otherAdmin := auth.Principal{UserID: other.User.ID, Role: auth.RoleAdmin}
	s.ErrorIs(s.svc.DeleteUser(s.ctx, otherAdmin, admin.ID), apperr.ErrForbidden)

	_, err = s.svc.UpdateRole(s.ctx, other.User.ID, "superuser")
	s.ErrorIs(err, apperr.ErrValidation)

	// 重复调用是幂等的
	s.NoError(s.svc.EnsureDefaultAdmin(s.ctx, "admin123"))
	users, err := s.svc.ListUsers(s.ctx)
	s.Require().NoError(err)
	s.Len(users, 2)
}

func (s *IdentityServiceSuite) TestDeleteUser() {
	admin, _ := s.repo.FindByEmail(s.ctx, adminEmail)
	p := admin.Principal()

	s.ErrorIs(s.svc.DeleteUser(s.ctx, p, admin.ID), apperr.ErrValidation)
	s.ErrorIs(s.svc.DeleteUser(s.ctx, p, 404), apperr.ErrNotFound)

	victim := s.register("Ann", "ann@example.com")
	s.Require().NoError(s.svc.DeleteUser(s.ctx, p, victim.User.ID))
	_, err := s.svc.GetUser(s.ctx, victim.User.ID)
	s.ErrorIs(err, apperr.ErrNotFound)
}

func TestEnsureDefaultAdminPromotesExistingUser(t *testing.T) {
	repo := &fakeUsers{users: map[int64]*domain.User{}}
	require.NoError(t, repo.Create(context.Background(), &domain.User{Name: "A", Email: adminEmail, Role: auth.RoleUser}))
	svc := NewIdentityService(repo, auth.NewTokenManager("s", time.Hour), &fakeImages{}, adminEmail,
		noop.NewTracerProvider().Tracer("test"))

	require.NoError(t, svc.EnsureDefaultAdmin(context.Background(), ""))
	assert.Equal(t, auth.RoleAdmin, repo.users[1].Role)
}
