package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brightsend/crm/internal/domain"
	"github.com/brightsend/crm/internal/pkg/httputil"
	"github.com/brightsend/crm/internal/service/campaign"
	"github.com/brightsend/crm/internal/service/sending"
)

type createCampaignRequest struct {
	campaign.CreateInput
	ClientIDs []string `json:"client_ids"`
}

type createCampaignResponse struct {
	Campaign    *domain.Campaign `json:"campaign"`
	JobsCreated int              `json:"jobs_created"`
}

// CreateCampaign creates a draft campaign and, when client_ids are supplied,
// resolves the audience in the same call.
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	c, err := h.campaigns.Create(r.Context(), req.CreateInput)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	jobs := 0
	if len(req.ClientIDs) > 0 {
		jobs, err = h.campaigns.ResolveAudience(r.Context(), c.ID, req.ClientIDs)
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
	}

	httputil.Created(w, createCampaignResponse{Campaign: c, JobsCreated: jobs})
}

// ListCampaigns returns a page of campaigns, optionally filtered by status.
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	f := campaign.ListFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	campaigns, total, err := h.campaigns.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if campaigns == nil {
		campaigns = []domain.Campaign{}
	}
	httputil.OK(w, map[string]any{"campaigns": campaigns, "total": total})
}

// GetCampaign returns one campaign.
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err == campaign.ErrNotFound {
		httputil.NotFound(w, "campaign not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, c)
}

// CampaignStats returns per-status job counts.
func (h *Handlers) CampaignStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.campaigns.Stats(r.Context(), chi.URLParam(r, "id"))
	if err == campaign.ErrNotFound {
		httputil.NotFound(w, "campaign not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, counts)
}

// CampaignEvents returns the campaign's engagement history.
func (h *Handlers) CampaignEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.campaigns.Get(r.Context(), id); err != nil {
		if err == campaign.ErrNotFound {
			httputil.NotFound(w, "campaign not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	events, err := h.events.ListByCampaign(r.Context(), id, queryInt(r, "limit", 100))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	httputil.OK(w, map[string]any{"events": events})
}

type resolveAudienceRequest struct {
	ClientIDs []string `json:"client_ids"`
}

// ResolveAudience creates pending jobs for the given candidates. Calling it
// again with the same candidates creates nothing new.
func (h *Handlers) ResolveAudience(w http.ResponseWriter, r *http.Request) {
	var req resolveAudienceRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.ClientIDs) == 0 {
		httputil.BadRequest(w, "client_ids is required")
		return
	}

	n, err := h.campaigns.ResolveAudience(r.Context(), chi.URLParam(r, "id"), req.ClientIDs)
	if err == campaign.ErrNotFound {
		httputil.NotFound(w, "campaign not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"jobs_created": n})
}

type sendCampaignRequest struct {
	// When is "now" for an immediate batch, or an RFC3339 timestamp to
	// schedule the campaign.
	When string `json:"when"`
}

// SendCampaign triggers an immediate batch or schedules the campaign.
func (h *Handlers) SendCampaign(w http.ResponseWriter, r *http.Request) {
	var req sendCampaignRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")

	if req.When == "" || req.When == "now" {
		res, err := h.executor.SendNow(r.Context(), id)
		switch err {
		case nil:
			httputil.OK(w, res)
		case campaign.ErrNotFound:
			httputil.NotFound(w, "campaign not found")
		case sending.ErrNotSendable:
			httputil.Conflict(w, err.Error())
		case sending.ErrSendInProgress:
			httputil.Conflict(w, err.Error())
		default:
			httputil.InternalError(w, err)
		}
		return
	}

	at, err := time.Parse(time.RFC3339, req.When)
	if err != nil {
		httputil.BadRequest(w, "when must be \"now\" or an RFC3339 timestamp")
		return
	}

	switch err := h.executor.Schedule(r.Context(), id, at); err {
	case nil:
		httputil.OK(w, map[string]any{"status": "scheduled", "scheduledAt": at.Format(time.RFC3339)})
	case campaign.ErrNotFound:
		httputil.NotFound(w, "campaign not found")
	case sending.ErrScheduleInPast:
		httputil.BadRequest(w, err.Error())
	case sending.ErrNotSendable:
		httputil.Conflict(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

// CancelCampaign moves a draft or scheduled campaign to cancelled.
func (h *Handlers) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	switch err := h.campaigns.Cancel(r.Context(), chi.URLParam(r, "id")); err {
	case nil:
		httputil.OK(w, map[string]string{"status": "cancelled"})
	case campaign.ErrNotFound:
		httputil.NotFound(w, "campaign not found")
	case campaign.ErrInvalidTransition:
		httputil.Conflict(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
