// Package api exposes the dashboard REST endpoints and the public tracking
// surface (pixel, click redirect, unsubscribe page).
package api

import (
	"context"
	"net/http"

	"github.com/brightsend/crm/internal/domain"
	"github.com/brightsend/crm/internal/pkg/httputil"
	"github.com/brightsend/crm/internal/service/campaign"
	"github.com/brightsend/crm/internal/service/client"
	"github.com/brightsend/crm/internal/service/sending"
	"github.com/brightsend/crm/internal/service/tracking"
)

// EventLister reads the engagement log for campaign views.
type EventLister interface {
	ListByCampaign(ctx context.Context, campaignID string, limit int) ([]domain.Event, error)
}

// Handlers bundles the services the HTTP layer delegates to.
type Handlers struct {
	campaigns *campaign.Service
	clients   *client.Service
	tracking  *tracking.Service
	executor  *sending.Executor
	events    EventLister
}

// NewHandlers wires the HTTP layer.
func NewHandlers(
	campaigns *campaign.Service,
	clients *client.Service,
	trackingSvc *tracking.Service,
	executor *sending.Executor,
	events EventLister,
) *Handlers {
	return &Handlers{
		campaigns: campaigns,
		clients:   clients,
		tracking:  trackingSvc,
		executor:  executor,
		events:    events,
	}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}
