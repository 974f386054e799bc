package httpapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"cardapio/backend/internal/domain"
	"cardapio/backend/internal/logging"
	"cardapio/backend/internal/store"
)

const tokenIssuer = "cardapio"

type AuthManager struct {
	mu              sync.RWMutex
	secret          []byte
	tokenTTL        time.Duration
	defaultTenantID string
	userStore       UserStore
	users           map[string]credential
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type credential struct {
	password    string
	displayName string
	role        string
	tenantID    string
	isCashier   bool
	active      bool
	created     time.Time
}

type staffClaims struct {
	jwtlib.RegisteredClaims
	Role      string `json:"role"`
	TenantID  string `json:"tenant_id"`
	IsCashier bool   `json:"is_cashier"`
	Name      string `json:"name,omitempty"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, defaultTenantID string, userStore UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	manager := &AuthManager{
		secret:          []byte(secret),
		tokenTTL:        tokenTTL,
		defaultTenantID: strings.TrimSpace(defaultTenantID),
		userStore:       userStore,
		users:           make(map[string]credential),
	}
	manager.bootstrapUsers(context.Background())
	return manager
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	a.bootstrapUsers(ctx)
	username := strings.ToLower(strings.TrimSpace(req.Username))
	a.mu.RLock()
	cred, ok := a.users[username]
	a.mu.RUnlock()
	if !ok {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}

	if !verifyPassword(cred.password, req.Password) {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}
	if !cred.active {
		return domain.LoginResponse{}, errors.New("account is inactive")
	}

	tenantID := cred.tenantID
	if tenantID == "" {
		tenantID = a.defaultTenantID
	}
	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(domain.Actor{
		Username:    username,
		DisplayName: cred.displayName,
		Role:        cred.role,
		TenantID:    tenantID,
		IsCashier:   cred.isCashier,
	}, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        cred.role,
		TenantID:    tenantID,
		IsCashier:   cred.isCashier,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &staffClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{
		Username:    sub,
		DisplayName: claims.Name,
		Role:        claims.Role,
		TenantID:    claims.TenantID,
		IsCashier:   claims.IsCashier,
	}, nil
}

func (a *AuthManager) sign(actor domain.Actor, expiresAt time.Time) (string, error) {
	claims := staffClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actor.Username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Role:      actor.Role,
		TenantID:  actor.TenantID,
		IsCashier: actor.IsCashier,
		Name:      actor.DisplayName,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// CreateStaff registers a staff account in the caller's tenant. Usernames are
// unique across tenants because login resolves the tenant from the username.
func (a *AuthManager) CreateStaff(ctx context.Context, tenantID string, req domain.StaffCreateRequest) (domain.StaffUser, error) {
	a.bootstrapUsers(ctx)
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len(username) < 4 {
		return domain.StaffUser{}, fmt.Errorf("%w: username must be at least 4 characters", store.ErrInvalidInput)
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return domain.StaffUser{}, fmt.Errorf("%w: username must not contain spaces", store.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Password) == "" || len(req.Password) < 6 {
		return domain.StaffUser{}, fmt.Errorf("%w: password must be at least 6 characters", store.ErrInvalidInput)
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = username
	}

	a.mu.RLock()
	_, exists := a.users[username]
	a.mu.RUnlock()
	if exists {
		return domain.StaffUser{}, fmt.Errorf("%w: username already exists", store.ErrConflict)
	}

	now := time.Now().UTC()
	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.StaffUser{}, fmt.Errorf("failed to hash password")
	}

	account := domain.UserAccount{
		Username:    username,
		DisplayName: displayName,
		Password:    passwordHash,
		Role:        domain.RoleStaff,
		TenantID:    tenantID,
		IsCashier:   req.IsCashier,
		Active:      true,
		CreatedAt:   now,
	}
	if a.userStore != nil {
		if err := a.userStore.CreateUser(ctx, account); err != nil {
			return domain.StaffUser{}, err
		}
	}

	a.mu.Lock()
	a.users[username] = credential{
		password:    passwordHash,
		displayName: displayName,
		role:        domain.RoleStaff,
		tenantID:    tenantID,
		isCashier:   req.IsCashier,
		active:      true,
		created:     now,
	}
	a.mu.Unlock()

	return domain.StaffUser{
		Username:    username,
		DisplayName: displayName,
		Role:        domain.RoleStaff,
		TenantID:    tenantID,
		IsCashier:   req.IsCashier,
		Active:      true,
		CreatedAt:   now,
	}, nil
}

// ListStaff returns the staff accounts of one tenant, sorted by username.
func (a *AuthManager) ListStaff(ctx context.Context, tenantID string) []domain.StaffUser {
	a.bootstrapUsers(ctx)
	a.mu.RLock()
	result := make([]domain.StaffUser, 0, len(a.users))
	for username, user := range a.users {
		if user.role != domain.RoleStaff || user.tenantID != tenantID {
			continue
		}
		result = append(result, domain.StaffUser{
			Username:    username,
			DisplayName: user.displayName,
			Role:        user.role,
			TenantID:    user.tenantID,
			IsCashier:   user.isCashier,
			Active:      user.active,
			CreatedAt:   user.created,
		})
	}
	a.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].Username < result[j].Username
	})
	return result
}

// bootstrapUsers loads user accounts from the user store into the in-memory
// credential cache and upgrades legacy plain-text passwords to bcrypt hashes.
func (a *AuthManager) bootstrapUsers(ctx context.Context) {
	if a.userStore == nil {
		return
	}

	users, err := a.userStore.ListUsers(ctx)
	if err != nil {
		logging.LogError("httpapi", "bootstrapUsers", "list users", nil, err)
		return
	}
	if len(users) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, user := range users {
		username := strings.ToLower(strings.TrimSpace(user.Username))
		if username == "" {
			continue
		}
		password := user.Password
		if !isPasswordHash(password) {
			hashed, err := hashPassword(password)
			if err == nil {
				password = hashed
				if err := a.userStore.UpdateUserPassword(ctx, username, hashed); err != nil {
					logging.LogError("httpapi", "bootstrapUsers", "upgrade password", username, err)
				}
			}
		}
		a.users[username] = credential{
			password:    password,
			displayName: user.DisplayName,
			role:        user.Role,
			tenantID:    user.TenantID,
			isCashier:   user.IsCashier,
			active:      user.Active,
			created:     user.CreatedAt,
		}
	}
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
