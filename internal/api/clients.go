package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brightsend/crm/internal/domain"
	"github.com/brightsend/crm/internal/pkg/httputil"
	"github.com/brightsend/crm/internal/service/client"
)

// CreateClient registers a new client with a subscribed email subscription.
func (h *Handlers) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req client.CreateInput
	if !httputil.Decode(w, r, &req) {
		return
	}

	c, err := h.clients.Create(r.Context(), req)
	if err == client.ErrDuplicateEmail {
		httputil.Conflict(w, err.Error())
		return
	}
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.Created(w, c)
}

// ListClients returns a page of clients, optionally filtered by tag.
func (h *Handlers) ListClients(w http.ResponseWriter, r *http.Request) {
	f := client.ListFilter{
		Tag:    r.URL.Query().Get("tag"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	clients, total, err := h.clients.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if clients == nil {
		clients = []domain.Client{}
	}
	httputil.OK(w, map[string]any{"clients": clients, "total": total})
}

// GetClient returns one client.
func (h *Handlers) GetClient(w http.ResponseWriter, r *http.Request) {
	c, err := h.clients.Get(r.Context(), chi.URLParam(r, "id"))
	if err == client.ErrNotFound {
		httputil.NotFound(w, "client not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, c)
}

// UpdateClient applies partial profile changes.
func (h *Handlers) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var req client.UpdateInput
	if !httputil.Decode(w, r, &req) {
		return
	}

	c, err := h.clients.Update(r.Context(), chi.URLParam(r, "id"), req)
	switch err {
	case nil:
		httputil.OK(w, c)
	case client.ErrNotFound:
		httputil.NotFound(w, "client not found")
	case client.ErrDuplicateEmail:
		httputil.Conflict(w, err.Error())
	default:
		httputil.BadRequest(w, err.Error())
	}
}

type addTagsRequest struct {
	Tags []string `json:"tags"`
}

// AddClientTags appends tags to a client.
func (h *Handlers) AddClientTags(w http.ResponseWriter, r *http.Request) {
	var req addTagsRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.Tags) == 0 {
		httputil.BadRequest(w, "tags is required")
		return
	}

	err := h.clients.AddTags(r.Context(), chi.URLParam(r, "id"), req.Tags)
	if err == client.ErrNotFound {
		httputil.NotFound(w, "client not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "ok"})
}

type setSubscriptionRequest struct {
	Channel string `json:"channel"`
	Status  string `json:"status"`
}

// SetClientSubscription flips opt-in state on a channel.
func (h *Handlers) SetClientSubscription(w http.ResponseWriter, r *http.Request) {
	var req setSubscriptionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	status := domain.SubscriptionStatus(req.Status)
	if status != domain.Subscribed && status != domain.Unsubscribed {
		httputil.BadRequest(w, "status must be subscribed or unsubscribed")
		return
	}

	err := h.clients.SetSubscription(r.Context(), chi.URLParam(r, "id"), req.Channel, status)
	if err == client.ErrNotFound {
		httputil.NotFound(w, "client not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": string(status)})
}
