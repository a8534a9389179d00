package users

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/triarqhealth/iam-portal/internal/audit"
	"github.com/triarqhealth/iam-portal/model"
	"github.com/triarqhealth/iam-portal/params"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type CreateUserOptions struct {
	Name       string
	Email      string
	Department string
	IsIAM      bool
	IsAdmin    bool
	Password   string
}

type UpdateUserOptions struct {
	Name       *string
	Department *string
	IsIAM      *bool
	IsAdmin    *bool
	IsActive   *bool
}

type UserService struct {
	userRepo UserRepository
	now      func() time.Time
}

func NewUserService(userRepo UserRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
		now:      time.Now,
	}
}

func (s *UserService) GetUserByID(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrUserNotFound
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *UserService) ListUsers(ctx context.Context) ([]*model.User, error) {
	return s.userRepo.List(ctx)
}

// Authenticate verifies the given credentials and enforces the failed-login
// lockout. Login attempts are written to the audit trail regardless of
// outcome.
func (s *UserService) Authenticate(ctx context.Context, email string, password string) (*model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		audit.Record(ctx, audit.Actor{Email: email}, audit.ActionLoginFailure, audit.TargetUser, email, false,
			map[string]any{"reason": "unknown email"})
		return nil, ErrWrongCredentials
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	actor := audit.Actor{ID: user.ID, Name: user.Name, Email: user.Email}
	if user.Locked(now) {
		audit.Record(ctx, actor, audit.ActionLoginFailure, audit.TargetUser, user.Email, false,
			map[string]any{"reason": "account locked"})
		return nil, ErrAccountLocked
	}
	if !user.IsActive {
		audit.Record(ctx, actor, audit.ActionLoginFailure, audit.TargetUser, user.Email, false,
			map[string]any{"reason": "account deactivated"})
		return nil, ErrAccountInactive
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		updates := map[string]interface{}{
			"failed_login_count": user.FailedLoginCount + 1,
		}
		if user.FailedLoginCount+1 >= params.MaxFailedLogins {
			lockUntil := now.Add(params.LoginLockoutTime)
			updates["failed_login_count"] = 0
			updates["lock_until"] = lockUntil
		}
		if _, err := s.userRepo.Updates(ctx, user.ID, updates); err != nil {
			return nil, err
		}
		audit.Record(ctx, actor, audit.ActionLoginFailure, audit.TargetUser, user.Email, false,
			map[string]any{"reason": "wrong password", "failedCount": user.FailedLoginCount + 1})
		return nil, ErrWrongCredentials
	}

	if user.FailedLoginCount > 0 || user.LockUntil != nil {
		if _, err := s.userRepo.Updates(ctx, user.ID, map[string]interface{}{
			"failed_login_count": 0,
			"lock_until":         nil,
		}); err != nil {
			return nil, err
		}
	}
	audit.Record(ctx, actor, audit.ActionLoginSuccess, audit.TargetUser, user.Email, true, nil)
	return user, nil
}

func (s *UserService) CreateUser(ctx context.Context, actor audit.Actor, opts CreateUserOptions) (*model.User, error) {
	if len(opts.Password) < params.MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := model.User{
		Name:              strings.TrimSpace(opts.Name),
		Email:             strings.TrimSpace(strings.ToLower(opts.Email)),
		DefaultDepartment: strings.TrimSpace(opts.Department),
		IsIAM:             opts.IsIAM,
		IsAdmin:           opts.IsAdmin,
		IsActive:          true,
		Password:          string(passwordHash),
	}
	if _, err := mail.ParseAddress(user.Email); err != nil {
		return nil, err
	}

	var mysqlErr *mysql.MySQLError
	err = s.userRepo.Create(ctx, &user)
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 && strings.Contains(mysqlErr.Message, model.IdxUserEmail) {
		return nil, ErrEmailRegistered
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrEmailRegistered
	}
	if err != nil {
		return nil, err
	}

	audit.Record(ctx, actor, audit.ActionUserCreate, audit.TargetUser, user.Email, true,
		map[string]any{"name": user.Name, "isIam": user.IsIAM, "isAdmin": user.IsAdmin})
	return &user, nil
}

func (s *UserService) UpdateUser(ctx context.Context, actor audit.Actor, userID uint, opts UpdateUserOptions) (*model.User, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if opts.Name != nil {
		updates["name"] = strings.TrimSpace(*opts.Name)
	}
	if opts.Department != nil {
		updates["default_department"] = strings.TrimSpace(*opts.Department)
	}
	if opts.IsIAM != nil {
		updates["is_iam"] = *opts.IsIAM
	}
	if opts.IsAdmin != nil && *opts.IsAdmin != user.IsAdmin {
		if !*opts.IsAdmin && user.IsAdmin {
			if err := s.checkNotLastAdmin(ctx, user); err != nil {
				return nil, err
			}
		}
		updates["is_admin"] = *opts.IsAdmin
	}

	deactivated := false
	reactivated := false
	if opts.IsActive != nil && *opts.IsActive != user.IsActive {
		if !*opts.IsActive {
			if err := s.checkNotLastAdmin(ctx, user); err != nil {
				return nil, err
			}
			deactivated = true
		} else {
			reactivated = true
		}
		updates["is_active"] = *opts.IsActive
	}
	if len(updates) == 0 {
		return user, nil
	}

	if _, err := s.userRepo.Updates(ctx, userID, updates); err != nil {
		return nil, err
	}
	user, err = s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch {
	case deactivated:
		audit.Record(ctx, actor, audit.ActionUserDeactivate, audit.TargetUser, user.Email, true, nil)
	case reactivated:
		audit.Record(ctx, actor, audit.ActionUserReactivate, audit.TargetUser, user.Email, true, nil)
	default:
		audit.Record(ctx, actor, audit.ActionUserUpdate, audit.TargetUser, user.Email, true,
			map[string]any{"fields": updateKeys(updates)})
	}
	return user, nil
}

func (s *UserService) ResetPassword(ctx context.Context, actor audit.Actor, userID uint, newPassword string) error {
	if len(newPassword) < params.MinPasswordLength {
		return ErrPasswordTooShort
	}
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	// A reset also clears any pending lockout.
	if _, err := s.userRepo.Updates(ctx, userID, map[string]interface{}{
		"password":           string(passwordHash),
		"failed_login_count": 0,
		"lock_until":         nil,
	}); err != nil {
		return err
	}
	audit.Record(ctx, actor, audit.ActionPasswordReset, audit.TargetUser, user.Email, true, nil)
	return nil
}

// SeedDefaults populates the user table with the demo accounts when it is
// empty. Intended for demo and development environments only.
// SeedDefaults creates the demo accounts on an empty user table. Account
// emails are local part plus the configured company domain.
func (s *UserService) SeedDefaults(ctx context.Context, emailDomain string, password string) error {
	existing, err := s.userRepo.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	defaults := []CreateUserOptions{
		{Name: "Jon", Email: "jon" + emailDomain, IsIAM: true, IsAdmin: true},
		{Name: "Pintal", Email: "pintal" + emailDomain, IsIAM: true},
		{Name: "Ami", Email: "ami" + emailDomain, IsIAM: true},
		{Name: "Alice Johnson", Email: "alice.johnson" + emailDomain},
		{Name: "Bob Smith", Email: "bob.smith" + emailDomain},
	}
	for _, opts := range defaults {
		opts.Password = password
		if _, err := s.CreateUser(ctx, audit.SystemActor, opts); err != nil {
			return err
		}
	}
	audit.Record(ctx, audit.SystemActor, audit.ActionUserCreate, audit.TargetSystem, "SEED", true,
		map[string]any{"message": "Seeded default users"})
	return nil
}

func (s *UserService) checkNotLastAdmin(ctx context.Context, user *model.User) error {
	if !user.IsAdmin || !user.IsActive {
		return nil
	}
	count, err := s.userRepo.CountActiveAdmins(ctx)
	if err != nil {
		return err
	}
	if count <= 1 {
		return ErrLastAdmin
	}
	return nil
}

func updateKeys(updates map[string]interface{}) []string {
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	return keys
}
