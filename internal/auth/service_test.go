package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vastralabs/vastra-backend/internal/users"
	pkgauth "github.com/vastralabs/vastra-backend/pkg/auth"
	"github.com/vastralabs/vastra-backend/pkg/config"
	"github.com/vastralabs/vastra-backend/pkg/db/models"
	"github.com/vastralabs/vastra-backend/pkg/enums"
	pkgerrors "github.com/vastralabs/vastra-backend/pkg/errors"
)

func testConfigs() (config.JWTConfig, config.PasswordConfig) {
	jwtCfg := config.JWTConfig{Secret: "test-secret", Issuer: "vastra-test", ExpirationMinutes: 30}
	pwCfg := config.PasswordConfig{ArgonMemoryKB: 16384, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}
	return jwtCfg, pwCfg
}

func newTestService(t *testing.T) Service {
	t.Helper()
	dsn := "file:auth_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	jwtCfg, pwCfg := testConfigs()
	svc, err := NewService(users.NewRepository(conn), jwtCfg, pwCfg)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	return svc
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterInput{
		Email:    "Asha@Example.com",
		Password: "correct horse battery",
		Name:     "Asha",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected a token")
	}
	if session.User.Email != "asha@example.com" {
		t.Fatalf("email should be normalized, got %q", session.User.Email)
	}
	if session.User.Role != enums.UserRoleCustomer {
		t.Fatalf("expected customer role, got %s", session.User.Role)
	}

	jwtCfg, _ := testConfigs()
	claims, err := pkgauth.ParseAccessToken(jwtCfg, session.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != session.User.ID {
		t.Fatal("token subject mismatch")
	}

	login, err := svc.Login(ctx, LoginInput{Email: "asha@example.com", Password: "correct horse battery"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.User.ID != session.User.ID {
		t.Fatal("login returned a different user")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	input := RegisterInput{Email: "dup@example.com", Password: "long-enough-pw", Name: "First"}
	if _, err := svc.Register(ctx, input); err != nil {
		t.Fatalf("first register: %v", err)
	}

	input.Name = "Second"
	_, err := svc.Register(ctx, input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLoginRejectsBadCredentialsUniformly(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "user@example.com", Password: "long-enough-pw", Name: "User"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, badPassword := svc.Login(ctx, LoginInput{Email: "user@example.com", Password: "wrong-password"})
	_, unknownEmail := svc.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "whatever-pw"})

	for _, err := range []error{badPassword, unknownEmail} {
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
			t.Fatalf("expected unauthorized, got %v", err)
		}
	}
	if badPassword.Error() != unknownEmail.Error() {
		t.Fatal("credential errors should be indistinguishable")
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	cases := []RegisterInput{
		{Email: "", Password: "long-enough-pw", Name: "A"},
		{Email: "a@b.com", Password: "short", Name: "A"},
		{Email: "a@b.com", Password: "long-enough-pw", Name: "  "},
	}
	for i, input := range cases {
		_, err := svc.Register(ctx, input)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}
