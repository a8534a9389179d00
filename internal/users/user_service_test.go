package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/triarqhealth/iam-portal/internal/audit"
	"github.com/triarqhealth/iam-portal/model"
	"gorm.io/gorm"
)

type fakeUserRepo struct {
	nextID uint
	byID   map[uint]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, byID: make(map[uint]*model.User)}
}

func (r *fakeUserRepo) GetByID(ctx context.Context, userID uint) (*model.User, error) {
	user, ok := r.byID[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, user := range r.byID {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) List(ctx context.Context) ([]*model.User, error) {
	var out []*model.User
	for _, user := range r.byID {
		cp := *user
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if _, err := r.GetByEmail(ctx, user.Email); err == nil {
		return gorm.ErrDuplicatedKey
	}
	if user.ID == 0 {
		user.ID = r.nextID
		r.nextID++
	}
	cp := *user
	r.byID[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Updates(ctx context.Context, userID uint, columns map[string]interface{}) (int64, error) {
	user, ok := r.byID[userID]
	if !ok {
		return 0, nil
	}
	for col, val := range columns {
		switch col {
		case "name":
			user.Name = val.(string)
		case "default_department":
			user.DefaultDepartment = val.(string)
		case "is_iam":
			user.IsIAM = val.(bool)
		case "is_admin":
			user.IsAdmin = val.(bool)
		case "is_active":
			user.IsActive = val.(bool)
		case "password":
			user.Password = val.(string)
		case "failed_login_count":
			user.FailedLoginCount = val.(int)
		case "lock_until":
			if val == nil {
				user.LockUntil = nil
			} else {
				t := val.(time.Time)
				user.LockUntil = &t
			}
		}
	}
	return 1, nil
}

func (r *fakeUserRepo) CountActiveAdmins(ctx context.Context) (int64, error) {
	var count int64
	for _, user := range r.byID {
		if user.IsAdmin && user.IsActive {
			count++
		}
	}
	return count, nil
}

const testPassword = "correct horse battery"

func newTestUserService(t *testing.T) (*UserService, *fakeUserRepo, *model.User) {
	t.Helper()
	repo := newFakeUserRepo()
	svc := NewUserService(repo)
	user, err := svc.CreateUser(context.Background(), audit.SystemActor, CreateUserOptions{
		Name:     "Jon",
		Email:    "jon@TRIARQHealth.com",
		IsIAM:    true,
		IsAdmin:  true,
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return svc, repo, user
}

func TestCreateUser(t *testing.T) {
	_, _, user := newTestUserService(t)
	if user.Email != "jon@triarqhealth.com" {
		t.Errorf("email not normalized: %q", user.Email)
	}
	if !user.IsActive {
		t.Errorf("new users must start active")
	}
	if user.Password == testPassword || user.Password == "" {
		t.Errorf("password stored in the clear")
	}
}

func TestCreateUserRejectsShortPassword(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	_, err := svc.CreateUser(context.Background(), audit.SystemActor, CreateUserOptions{
		Name:     "Eve",
		Email:    "eve@TRIARQHealth.com",
		Password: "short",
	})
	if !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("err = %v, want ErrPasswordTooShort", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	_, err := svc.CreateUser(context.Background(), audit.SystemActor, CreateUserOptions{
		Name:     "Jon Again",
		Email:    "JON@TRIARQHealth.com",
		Password: testPassword,
	})
	if !errors.Is(err, ErrEmailRegistered) {
		t.Errorf("err = %v, want ErrEmailRegistered", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _, user := newTestUserService(t)

	got, err := svc.Authenticate(context.Background(), " Jon@TRIARQHealth.com ", testPassword)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("wrong user returned")
	}

	if _, err := svc.Authenticate(context.Background(), user.Email, "wrong"); !errors.Is(err, ErrWrongCredentials) {
		t.Errorf("wrong password: err = %v, want ErrWrongCredentials", err)
	}
	if _, err := svc.Authenticate(context.Background(), "nobody@TRIARQHealth.com", testPassword); !errors.Is(err, ErrWrongCredentials) {
		t.Errorf("unknown email: err = %v, want ErrWrongCredentials", err)
	}
}

func TestAuthenticateLockout(t *testing.T) {
	svc, repo, user := newTestUserService(t)
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	for i := 0; i < 4; i++ {
		if _, err := svc.Authenticate(context.Background(), user.Email, "wrong"); !errors.Is(err, ErrWrongCredentials) {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if repo.byID[user.ID].LockUntil != nil {
			t.Fatalf("locked too early after %d attempts", i+1)
		}
	}

	// Fifth failure trips the lockout.
	if _, err := svc.Authenticate(context.Background(), user.Email, "wrong"); !errors.Is(err, ErrWrongCredentials) {
		t.Fatal(err)
	}
	stored := repo.byID[user.ID]
	if stored.LockUntil == nil || !stored.LockUntil.Equal(now.Add(5*time.Minute)) {
		t.Fatalf("lockUntil = %v", stored.LockUntil)
	}

	// Even the right password is rejected while locked.
	if _, err := svc.Authenticate(context.Background(), user.Email, testPassword); !errors.Is(err, ErrAccountLocked) {
		t.Errorf("err = %v, want ErrAccountLocked", err)
	}

	// After the window passes the user can log in and counters reset.
	svc.now = func() time.Time { return now.Add(6 * time.Minute) }
	if _, err := svc.Authenticate(context.Background(), user.Email, testPassword); err != nil {
		t.Fatalf("login after lockout: %v", err)
	}
	stored = repo.byID[user.ID]
	if stored.FailedLoginCount != 0 || stored.LockUntil != nil {
		t.Errorf("counters not reset: %+v", stored)
	}
}

func TestAuthenticateInactive(t *testing.T) {
	svc, repo, user := newTestUserService(t)
	repo.byID[user.ID].IsActive = false

	if _, err := svc.Authenticate(context.Background(), user.Email, testPassword); !errors.Is(err, ErrAccountInactive) {
		t.Errorf("err = %v, want ErrAccountInactive", err)
	}
}

func TestUpdateUserDeactivateLastAdmin(t *testing.T) {
	svc, _, admin := newTestUserService(t)
	inactive := false

	_, err := svc.UpdateUser(context.Background(), audit.SystemActor, admin.ID, UpdateUserOptions{IsActive: &inactive})
	if !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("err = %v, want ErrLastAdmin", err)
	}

	// With a second admin present the deactivation goes through.
	if _, err := svc.CreateUser(context.Background(), audit.SystemActor, CreateUserOptions{
		Name:     "Backup Admin",
		Email:    "backup@TRIARQHealth.com",
		IsAdmin:  true,
		Password: testPassword,
	}); err != nil {
		t.Fatal(err)
	}
	updated, err := svc.UpdateUser(context.Background(), audit.SystemActor, admin.ID, UpdateUserOptions{IsActive: &inactive})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if updated.IsActive {
		t.Errorf("user still active")
	}
}

func TestUpdateUserFields(t *testing.T) {
	svc, _, admin := newTestUserService(t)
	name := "Jon H."
	dept := "Security"

	updated, err := svc.UpdateUser(context.Background(), audit.SystemActor, admin.ID, UpdateUserOptions{
		Name:       &name,
		Department: &dept,
	})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if updated.Name != "Jon H." || updated.DefaultDepartment != "Security" {
		t.Errorf("fields not updated: %+v", updated)
	}
}

func TestResetPassword(t *testing.T) {
	svc, repo, user := newTestUserService(t)
	lockUntil := time.Now().Add(time.Hour)
	repo.byID[user.ID].LockUntil = &lockUntil
	repo.byID[user.ID].FailedLoginCount = 3

	if err := svc.ResetPassword(context.Background(), audit.SystemActor, user.ID, "brand new password"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	stored := repo.byID[user.ID]
	if stored.LockUntil != nil || stored.FailedLoginCount != 0 {
		t.Errorf("reset must clear lockout state: %+v", stored)
	}
	if _, err := svc.Authenticate(context.Background(), user.Email, "brand new password"); err != nil {
		t.Errorf("login with new password: %v", err)
	}

	if err := svc.ResetPassword(context.Background(), audit.SystemActor, user.ID, "short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("err = %v, want ErrPasswordTooShort", err)
	}
}

func TestSeedDefaults(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewUserService(repo)

	if err := svc.SeedDefaults(context.Background(), "@TRIARQHealth.com", "demo-password-123"); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	if len(repo.byID) != 5 {
		t.Fatalf("seeded %d users, want 5", len(repo.byID))
	}

	admin, err := svc.GetUserByEmail(context.Background(), "jon@triarqhealth.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if !admin.IsAdmin || !admin.IsIAM {
		t.Errorf("seeded admin flags wrong: %+v", admin)
	}

	// Seeding is a no-op once any user exists.
	if err := svc.SeedDefaults(context.Background(), "@TRIARQHealth.com", "demo-password-123"); err != nil {
		t.Fatal(err)
	}
	if len(repo.byID) != 5 {
		t.Errorf("second seed added users")
	}
}

func TestSeedDefaultsUsesEmailDomain(t *testing.T) {
	svc := NewUserService(newFakeUserRepo())

	if err := svc.SeedDefaults(context.Background(), "@example.org", "demo-password-123"); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	if _, err := svc.GetUserByEmail(context.Background(), "jon@example.org"); err != nil {
		t.Errorf("seed account not on configured domain: %v", err)
	}
}
