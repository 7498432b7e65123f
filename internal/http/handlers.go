package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	mongoadapter "github.com/robertarktes/venue-ticketing/internal/adapters/mongo"
	"github.com/robertarktes/venue-ticketing/internal/auth"
	"github.com/robertarktes/venue-ticketing/internal/domain"
	"github.com/robertarktes/venue-ticketing/internal/service"
)

// Catalog serves the public event listing from the read model.
type Catalog interface {
	ListUpcoming(ctx context.Context, now time.Time, limit, offset int) ([]mongoadapter.EventDoc, error)
}

// Check reports whether a dependency is ready to serve.
type Check func(ctx context.Context) error

type Handlers struct {
	svc     *service.Service
	catalog Catalog
	issuer  *auth.Issuer
	checks  map[string]Check
}

// NewHandlers wires the API handlers. catalog may be nil, in which case
// listings are served from the database.
func NewHandlers(svc *service.Service, catalog Catalog, issuer *auth.Issuer, checks map[string]Check) *Handlers {
	return &Handlers{svc: svc, catalog: catalog, issuer: issuer, checks: checks}
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz runs every dependency check concurrently and reports each result.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	errs := make([]error, 0, len(h.checks))
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
		errs = append(errs, nil)
	}
	var g errgroup.Group
	for i, name := range names {
		check := h.checks[name]
		g.Go(func() error {
			errs[i] = check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusOK
	for i, name := range names {
		results[name] = "ok"
		if errs[i] != nil {
			results[name] = errs[i].Error()
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, results)
}

type provisionAdminRequest struct {
	UserID *uuid.UUID  `json:"user_id"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
}

type provisionAdminResponse struct {
	UserID    uuid.UUID   `json:"user_id"`
	Role      domain.Role `json:"role"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// ProvisionAdmin mints a bearer credential for a new venue admin.
func (h *Handlers) ProvisionAdmin(w http.ResponseWriter, r *http.Request) {
	if err := domain.Authorize(actor(r), domain.ActionProvisionAdmin, domain.Resource{}); err != nil {
		writeError(w, r, err)
		return
	}
	var req provisionAdminRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Role == "" {
		req.Role = domain.RoleAdmin
	}
	if req.Role != domain.RoleAdmin && req.Role != domain.RoleSuperAdmin {
		writeError(w, r, domain.Invalid("role", "must be %q or %q", domain.RoleAdmin, domain.RoleSuperAdmin))
		return
	}
	provisioned := domain.Actor{UserID: uuid.New(), Role: req.Role, Email: req.Email}
	if req.UserID != nil {
		provisioned.UserID = *req.UserID
	}
	token, expires, err := h.issuer.Issue(provisioned, time.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	requestLogger(r).WithField("admin_id", provisioned.UserID).Info("admin provisioned")
	writeJSON(w, http.StatusCreated, provisionAdminResponse{UserID: provisioned.UserID, Role: provisioned.Role, Token: token, ExpiresAt: expires})
}
