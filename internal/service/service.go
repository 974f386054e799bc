package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"cardapio/backend/internal/cache"
	"cardapio/backend/internal/domain"
	"cardapio/backend/internal/ledger"
	"cardapio/backend/internal/logging"
	"cardapio/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// ErrForbidden is returned when the actor's role does not allow the operation.
var ErrForbidden = errors.New("forbidden")

type Service struct {
	repo            store.Repository
	reports         cache.ReportCache
	reportTTL       time.Duration
	clock           ledger.Clock
	defaultTenantID string
	validate        *validator.Validate
	revision        atomic.Uint64
}

func New(repo store.Repository, reports cache.ReportCache, reportTTL time.Duration, clock ledger.Clock, defaultTenantID string) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if reportTTL <= 0 {
		reportTTL = time.Minute
	}
	if defaultTenantID == "" {
		defaultTenantID = "demo-restaurant"
	}

	return &Service{
		repo:            repo,
		reports:         reports,
		reportTTL:       reportTTL,
		clock:           clock,
		defaultTenantID: defaultTenantID,
		validate:        newValidator(),
	}
}

func (s *Service) Clock() ledger.Clock {
	return s.clock
}

// Refresh loads every row of the tenant into a new snapshot. Snapshots are
// never mutated after they are returned.
func (s *Service) Refresh(ctx context.Context, tenantID string) (*domain.Snapshot, error) {
	snap, err := s.repo.LoadSnapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	snap.Revision = s.revision.Add(1)
	snap.Fingerprint = fingerprint(snap)
	return snap, nil
}

// Revision reports how many snapshots this process has produced.
func (s *Service) Revision() uint64 {
	return s.revision.Load()
}

func fingerprint(snap *domain.Snapshot) string {
	payload, err := json.Marshal(struct {
		TenantID         string                  `json:"t"`
		Settings         domain.TenantSettings   `json:"s"`
		MenuItems        []domain.MenuItem       `json:"m"`
		InventoryEntries []domain.InventoryEntry `json:"i"`
		Orders           []domain.Order          `json:"o"`
		Expenses         []domain.Expense        `json:"e"`
		Sessions         []domain.CashierSession `json:"c"`
	}{snap.TenantID, snap.Settings, snap.MenuItems, snap.InventoryEntries, snap.Orders, snap.Expenses, snap.Sessions})
	if err != nil {
		return fmt.Sprintf("rev-%d", snap.Revision)
	}
	hash := sha1.Sum(payload)
	return hex.EncodeToString(hash[:])
}

func (s *Service) tenantFor(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.TenantID != "" {
		return actor.TenantID
	}
	return s.defaultTenantID
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || !actor.IsTenantAdmin() {
		return domain.Actor{}, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return actor, nil
}

func requireStaff(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || (actor.Role != domain.RoleStaff && !actor.IsTenantAdmin()) {
		return domain.Actor{}, fmt.Errorf("%w: staff role required", ErrForbidden)
	}
	return actor, nil
}

func requireCashier(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || (!actor.IsCashier && !actor.IsTenantAdmin()) {
		return domain.Actor{}, fmt.Errorf("%w: cashier access required", ErrForbidden)
	}
	return actor, nil
}

// validateRequest runs struct tags and reports failing fields as ErrInvalidInput.
func (s *Service) validateRequest(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	fields := ProcessValidationErrors(validationErrors)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+" "+fields[name])
	}
	return fmt.Errorf("%w: %s", store.ErrInvalidInput, strings.Join(parts, ", "))
}

// ProcessValidationErrors maps each failing field, by its json path, to the tag it failed.
func ProcessValidationErrors(errs validator.ValidationErrors) map[string]string {
	result := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		name := fieldErr.Namespace()
		if i := strings.Index(name, "."); i >= 0 {
			name = name[i+1:]
		}
		result[name] = fieldErr.Tag()
	}
	return result
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// logAudit records who changed what on the structured log.
func (s *Service) logAudit(ctx context.Context, tenantID string, action string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}
	logging.Logger().WithFields(logrus.Fields{
		"module":    "audit",
		"tenant_id": tenantID,
		"actor":     actor.Username,
		"role":      actor.Role,
		"action":    action,
		"entity_id": entityID,
		"detail":    detail,
	}).Info("audit")
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
