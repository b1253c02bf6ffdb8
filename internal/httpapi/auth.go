package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tokopos/backend/internal/domain"
)

type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
}

type posCustomClaims struct {
	jwtlib.RegisteredClaims
	Role           string `json:"role"`
	OrganizationID string `json:"organizationId,omitempty"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}

	return &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
	}
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	user, err := a.userStore.GetUserByUsername(ctx, username)
	if err != nil || !verifyPassword(user.Password, req.Password) {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}

	actor := domain.Actor{Username: user.Username, Role: user.Role, OrganizationID: user.OrganizationID}
	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(actor, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      actor,
	}, nil
}

// Signup creates an admin account with a fresh organization ID. The
// first user of an organization is always its admin; cashiers are
// added by that admin later.
func (a *AuthManager) Signup(ctx context.Context, req domain.SignupRequest) (domain.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len(username) < 4 || strings.ContainsAny(username, " \t\r\n") {
		return domain.LoginResponse{}, fmt.Errorf("username must be at least 4 characters with no spaces")
	}
	if len(strings.TrimSpace(req.Password)) < 6 {
		return domain.LoginResponse{}, fmt.Errorf("password must be at least 6 characters")
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("failed to hash password")
	}

	orgID := newOrganizationID()
	err = a.userStore.CreateUser(ctx, domain.UserAccount{
		Username:       username,
		Password:       hash,
		Role:           domain.RoleAdmin,
		OrganizationID: orgID,
	})
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return a.Login(ctx, domain.LoginRequest{Username: username, Password: req.Password})
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &posCustomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{Username: sub, Role: claims.Role, OrganizationID: claims.OrganizationID}, nil
}

func (a *AuthManager) sign(actor domain.Actor, expiresAt time.Time) (string, error) {
	claims := posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actor.Username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "tokopos",
		},
		Role:           actor.Role,
		OrganizationID: actor.OrganizationID,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func newOrganizationID() string {
	return "org_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
