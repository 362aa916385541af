package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/memstore"
	"github.com/boddenberg/fintrack-bfa-go/internal/service"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newAuth() *service.AuthService {
	return service.NewAuthService(memstore.New(), "test-secret", time.Hour, zap.NewNop()).
		WithBcryptCost(bcrypt.MinCost)
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	svc := newAuth()
	ctx := context.Background()

	reg, err := svc.Register(ctx, &domain.RegisterRequest{Name: "Ana", Email: " Ana@Example.com ", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.User.Email != "ana@example.com" || reg.AccessToken == "" || reg.ExpiresIn != 3600 {
		t.Errorf("register response = %+v", reg)
	}

	login, err := svc.Login(ctx, &domain.LoginRequest{Email: "ANA@example.com", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := svc.ValidateAccessToken(login.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Sub != reg.User.ID || claims.Type != "access" {
		t.Errorf("claims = %+v", claims)
	}

	me, err := svc.Me(ctx, claims.Sub)
	if err != nil || me.Name != "Ana" {
		t.Errorf("me = %+v, %v", me, err)
	}
}

func TestAuth_Failures(t *testing.T) {
	svc := newAuth()
	ctx := context.Background()
	_, _ = svc.Register(ctx, &domain.RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "s3cret-pass"})

	var conflict *domain.ErrConflict
	if _, err := svc.Register(ctx, &domain.RegisterRequest{Name: "Other", Email: "ana@example.com", Password: "another-pass"}); !errors.As(err, &conflict) {
		t.Errorf("duplicate e-mail = %v, want ErrConflict", err)
	}

	var ve *domain.ErrValidation
	if _, err := svc.Register(ctx, &domain.RegisterRequest{Name: "Bob", Email: "bob@example.com", Password: "short"}); !errors.As(err, &ve) || ve.Field != "password" {
		t.Errorf("short password = %v", err)
	}

	var unauth *domain.ErrUnauthorized
	if _, err := svc.Login(ctx, &domain.LoginRequest{Email: "ana@example.com", Password: "wrong-pass"}); !errors.As(err, &unauth) {
		t.Errorf("wrong password = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.Login(ctx, &domain.LoginRequest{Email: "nobody@example.com", Password: "whatever1"}); !errors.As(err, &unauth) {
		t.Errorf("unknown user = %v, want ErrUnauthorized", err)
	}

	other := service.NewAuthService(memstore.New(), "other-secret", time.Hour, zap.NewNop())
	login, _ := svc.Login(ctx, &domain.LoginRequest{Email: "ana@example.com", Password: "s3cret-pass"})
	if _, err := other.ValidateAccessToken(login.AccessToken); !errors.As(err, &unauth) {
		t.Errorf("foreign signature = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.ValidateAccessToken("not-a-jwt"); !errors.As(err, &unauth) {
		t.Errorf("garbage token = %v, want ErrUnauthorized", err)
	}
}
