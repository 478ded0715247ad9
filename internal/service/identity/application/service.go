// internal/service/identity/application/service.go
package application

import (
	"context"
	"mime/multipart"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tourhub/internal/pkg/apperr"
	"tourhub/internal/pkg/auth"
	"tourhub/internal/pkg/logger"
	"tourhub/internal/service/identity/domain"
)

const avatarCategory = "avatars"

// IdentityService 负责注册、登录、个人资料和用户管理
type IdentityService struct {
	repo         domain.UserRepository
	tokens       *auth.TokenManager
	images       ImageStore
	defaultAdmin string
	tracer       trace.Tracer
}

// NewIdentityService 创建账户服务。defaultAdmin 是不可降级、不可删除的管理员邮箱
func NewIdentityService(repo domain.UserRepository, tokens *auth.TokenManager, images ImageStore, defaultAdmin string, tracer trace.Tracer) *IdentityService {
	return &IdentityService{
		repo:         repo,
		tokens:       tokens,
		images:       images,
		defaultAdmin: strings.ToLower(strings.TrimSpace(defaultAdmin)),
		tracer:       tracer,
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (s *IdentityService) issue(u *domain.User) (*AuthResponse, error) {
	token, err := s.tokens.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: toUserResponse(u), Token: token}, nil
}

// Register 创建普通用户并返回令牌
func (s *IdentityService) Register(ctx context.Context, req RegisterRequest, avatar *multipart.FileHeader) (*AuthResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.Register")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fail(span, apperr.Validation("name is required"))
	}
	email, err := domain.NormalizeEmail(req.Email)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := domain.ValidatePassword(req.Password); err != nil {
		return nil, fail(span, err)
	}
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "lookup email"))
	}
	if existing != nil {
		return nil, fail(span, apperr.Conflict("a user with email %s already exists", email))
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fail(span, err)
	}
	user := &domain.User{Name: name, Email: email, PasswordHash: hash, Role: auth.RoleUser}
	if avatar != nil {
		if user.Avatar, err = s.images.Save(avatarCategory, avatar); err != nil {
			return nil, fail(span, err)
		}
	}
	if err := s.repo.Create(ctx, user); err != nil {
		s.discardImage(ctx, user.Avatar)
		return nil, fail(span, errors.Wrap(err, "create user"))
	}

	span.SetAttributes(attribute.Int64("user.id", user.ID))
	logger.Ctx(ctx).Info().Int64("user_id", user.ID).Msg("✅ user registered")
	return s.issue(user)
}

// Login 校验邮箱和密码。两者任一错误都返回同一个未认证错误
func (s *IdentityService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.Login")
	defer span.End()

	bad := apperr.Unauthorized("invalid email or password")
	email, err := domain.NormalizeEmail(req.Email)
	if err != nil || req.Password == "" {
		return nil, fail(span, bad)
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "lookup email"))
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		logger.Ctx(ctx).Warn().Str("email", email).Msg("⚠️ login rejected")
		return nil, fail(span, bad)
	}
	return s.issue(user)
}

// LoadPrincipal 按 ID 重新加载调用方，供认证中间件使用
func (s *IdentityService) LoadPrincipal(ctx context.Context, userID int64) (auth.Principal, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return auth.Principal{}, err
	}
	return user.Principal(), nil
}

// Me 返回当前用户
func (s *IdentityService) Me(ctx context.Context, p auth.Principal) (*UserResponse, error) {
	return s.GetUser(ctx, p.UserID)
}

// GetUser 返回指定用户
func (s *IdentityService) GetUser(ctx context.Context, id int64) (*UserResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetUser")
	defer span.End()

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	resp := toUserResponse(user)
	return &resp, nil
}

// UpdateProfile 更新当前用户的资料。修改密码需要提供当前密码
func (s *IdentityService) UpdateProfile(ctx context.Context, p auth.Principal, req ProfileRequest) (*UserResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.UpdateProfile")
	defer span.End()

	user, err := s.repo.FindByID(ctx, p.UserID)
	if err != nil {
		return nil, fail(span, err)
	}

	var patch domain.UserPatch
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fail(span, apperr.Validation("name must not be empty"))
		}
		patch.Name = &name
	}
	if req.Email != nil {
		email, err := domain.NormalizeEmail(*req.Email)
		if err != nil {
			return nil, fail(span, err)
		}
		if email != user.Email {
			other, err := s.repo.FindByEmail(ctx, email)
			if err != nil {
				return nil, fail(span, errors.Wrap(err, "lookup email"))
			}
			if other != nil {
				return nil, fail(span, apperr.Conflict("email %s is already in use", email))
			}
			patch.Email = &email
		}
	}
	if p.Can(auth.CapEditGuideProfile) && user.Role == auth.RoleGuide {
		patch.Position = req.Position
		patch.Description = req.Description
	}
	if req.NewPassword != "" {
		if req.CurrentPassword == "" || !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
			return nil, fail(span, apperr.Validation("current password is incorrect"))
		}
		if err := domain.ValidatePassword(req.NewPassword); err != nil {
			return nil, fail(span, err)
		}
		hash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			return nil, fail(span, err)
		}
		patch.PasswordHash = &hash
	}
	if patch.Empty() {
		if req.Email != nil {
			// 邮箱未变化
			return s.GetUser(ctx, p.UserID)
		}
		return nil, fail(span, apperr.Validation("no fields to update"))
	}

	if err := s.repo.Update(ctx, p.UserID, patch); err != nil {
		return nil, fail(span, errors.Wrap(err, "update profile"))
	}
	return s.GetUser(ctx, p.UserID)
}

// UploadAvatar 替换当前用户的头像并删除旧文件
func (s *IdentityService) UploadAvatar(ctx context.Context, p auth.Principal, fh *multipart.FileHeader) (*UserResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.UploadAvatar")
	defer span.End()

	if fh == nil {
		return nil, fail(span, apperr.Validation("avatar file is required"))
	}
	user, err := s.repo.FindByID(ctx, p.UserID)
	if err != nil {
		return nil, fail(span, err)
	}
	path, err := s.images.Save(avatarCategory, fh)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := s.repo.Update(ctx, p.UserID, domain.UserPatch{Avatar: &path}); err != nil {
		s.discardImage(ctx, path)
		return nil, fail(span, errors.Wrap(err, "update avatar"))
	}
	s.discardImage(ctx, user.Avatar)
	return s.GetUser(ctx, p.UserID)
}

// ListUsers 列出全部用户
func (s *IdentityService) ListUsers(ctx context.Context) ([]UserResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListUsers")
	defer span.End()

	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "list users"))
	}
	out := make([]UserResponse, len(users))
	for i := range users {
		out[i] = toUserResponse(&users[i])
	}
	return out, nil
}

// ListGuides 列出导游的公开名片
func (s *IdentityService) ListGuides(ctx context.Context) ([]GuideResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListGuides")
	defer span.End()

	users, err := s.repo.ListByRole(ctx, auth.RoleGuide)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "list guides"))
	}
	out := make([]GuideResponse, len(users))
	for i, u := range users {
		out[i] = GuideResponse{ID: u.ID, Name: u.Name, Position: u.Position, Description: u.Description, Avatar: u.Avatar}
	}
	return out, nil
}

// UpdateRole 修改用户角色。默认管理员的角色不能修改
func (s *IdentityService) UpdateRole(ctx context.Context, id int64, rawRole string) (*UserResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.UpdateRole")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", id))

	role, err := auth.ParseRole(rawRole)
	if err != nil {
		return nil, fail(span, err)
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	if s.isDefaultAdmin(user) {
		return nil, fail(span, apperr.Forbidden("the role of the default administrator cannot be changed"))
	}
	if user.Role != role {
		if err := s.repo.Update(ctx, id, domain.UserPatch{Role: &role}); err != nil {
			return nil, fail(span, errors.Wrap(err, "update role"))
		}
		logger.Ctx(ctx).Info().Int64("user_id", id).
			Str("from", string(user.Role)).Str("to", string(role)).Msg("🔄 user role changed")
	}
	return s.GetUser(ctx, id)
}

// DeleteUser 删除用户。管理员不能删除自己，也不能删除默认管理员
func (s *IdentityService) DeleteUser(ctx context.Context, p auth.Principal, id int64) error {
	ctx, span := s.tracer.Start(ctx, "service.DeleteUser")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", id))

	if id == p.UserID {
		return fail(span, apperr.Validation("you cannot delete your own account"))
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fail(span, err)
	}
	if s.isDefaultAdmin(user) {
		return fail(span, apperr.Forbidden("the default administrator cannot be deleted"))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fail(span, err)
	}
	s.discardImage(ctx, user.Avatar)
	logger.Ctx(ctx).Info().Int64("user_id", id).Msg("user deleted")
	return nil
}

// EnsureDefaultAdmin 在启动时确保默认管理员存在且角色为 admin
func (s *IdentityService) EnsureDefaultAdmin(ctx context.Context, password string) error {
	if s.defaultAdmin == "" {
		return nil
	}
	user, err := s.repo.FindByEmail(ctx, s.defaultAdmin)
	if err != nil {
		return errors.Wrap(err, "lookup default admin")
	}
	if user != nil {
		if user.Role == auth.RoleAdmin {
			return nil
		}
		role := auth.RoleAdmin
		return s.repo.Update(ctx, user.ID, domain.UserPatch{Role: &role})
	}
	if err := domain.ValidatePassword(password); err != nil {
		return errors.Wrap(err, "default admin password")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &domain.User{Name: "Administrator", Email: s.defaultAdmin, PasswordHash: hash, Role: auth.RoleAdmin}
	if err := s.repo.Create(ctx, admin); err != nil {
		return errors.Wrap(err, "create default admin")
	}
	logger.Ctx(ctx).Info().Str("email", s.defaultAdmin).Msg("👤 default administrator created")
	return nil
}

func (s *IdentityService) isDefaultAdmin(u *domain.User) bool {
	return s.defaultAdmin != "" && u.Email == s.defaultAdmin
}

func (s *IdentityService) discardImage(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := s.images.Remove(path); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("image", path).Msg("⚠️ failed to remove avatar")
	}
}
