package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/hii-network/go-hns/interfaces"
	"github.com/hii-network/go-hns/ownership"
	"github.com/hii-network/go-hns/registration"
	"github.com/hii-network/go-hns/tldconfig"
)

// DefaultQuoteDuration is used when a price request does not specify one.
const DefaultQuoteDuration = 365 * 24 * time.Hour

// Handler serves the read-side domain API: ownership listings, name info,
// availability and price quotes.
type Handler struct {
	engine    *ownership.Engine
	registrar *registration.Registrar
	log       *slog.Logger
}

func NewHandler(engine *ownership.Engine, registrar *registration.Registrar, log *slog.Logger) *Handler {
	return &Handler{engine: engine, registrar: registrar, log: log}
}

type domainResponse struct {
	Name           string `json:"name"`
	Node           string `json:"node"`
	Label          string `json:"label"`
	DirectOwner    string `json:"directOwner"`
	EffectiveOwner string `json:"effectiveOwner"`
	Wrapped        bool   `json:"wrapped"`
	Resolver       string `json:"resolver,omitempty"`
	ForwardAddr    string `json:"forwardAddr,omitempty"`
	Email          string `json:"email,omitempty"`
	Expiry         string `json:"expiry,omitempty"`
	Source         string `json:"source"`
}

type domainsResponse struct {
	Owner    string           `json:"owner"`
	Domains  []domainResponse `json:"domains"`
	Complete bool             `json:"complete"`
}

func toDomainResponse(rec interfaces.DomainRecord) domainResponse {
	resp := domainResponse{
		Name:           rec.Name,
		Node:           rec.Node.Hex(),
		Label:          rec.Label,
		DirectOwner:    rec.DirectOwner.Hex(),
		EffectiveOwner: rec.EffectiveOwner.Hex(),
		Wrapped:        rec.Wrapped,
		Source:         string(rec.Source),
	}
	if rec.Resolver != (common.Address{}) {
		resp.Resolver = rec.Resolver.Hex()
	}
	if rec.ForwardAddr != (common.Address{}) {
		resp.ForwardAddr = rec.ForwardAddr.Hex()
	}
	resp.Email = rec.Email
	if !rec.Expiry.IsZero() {
		resp.Expiry = rec.Expiry.Format(time.RFC3339)
	}
	return resp
}

// HandleDomainsByOwner serves GET /api/v1/domains/{address}. A degraded
// reconciliation still returns the partial list, with complete=false.
func (h *Handler) HandleDomainsByOwner(w http.ResponseWriter, r *http.Request) {
	addrParam := chi.URLParam(r, "address")
	if !common.IsHexAddress(addrParam) {
		h.writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	owner := common.HexToAddress(addrParam)

	records, err := h.engine.DomainsOwnedBy(r.Context(), owner)
	complete := true
	if err != nil {
		if !errors.Is(err, interfaces.ErrIndexingDegraded) {
			h.log.Error("Ownership lookup failed", "owner", owner.Hex(), "err", err)
			h.writeError(w, http.StatusBadGateway, "ownership lookup failed")
			return
		}
		h.log.Warn("Serving partial ownership result", "owner", owner.Hex(), "err", err)
		complete = false
	}

	resp := domainsResponse{
		Owner:    owner.Hex(),
		Domains:  make([]domainResponse, 0, len(records)),
		Complete: complete,
	}
	for _, rec := range records {
		resp.Domains = append(resp.Domains, toDomainResponse(rec))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleDomainInfo serves GET /api/v1/names/{name}.
func (h *Handler) HandleDomainInfo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	rec, err := h.engine.DomainInfo(r.Context(), name)
	if err != nil {
		if errors.Is(err, interfaces.ErrTLDNotFound) {
			h.writeError(w, http.StatusNotFound, "unknown TLD")
			return
		}
		h.log.Error("Domain info lookup failed", "name", name, "err", err)
		h.writeError(w, http.StatusBadGateway, "lookup failed")
		return
	}
	h.writeJSON(w, http.StatusOK, toDomainResponse(rec))
}

// HandleAvailable serves GET /api/v1/names/{name}/available.
func (h *Handler) HandleAvailable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	label, rec, err := h.splitName(r, name)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "unknown TLD")
		return
	}
	available, err := h.registrar.Available(r.Context(), label, rec.TLD)
	if err != nil {
		h.log.Error("Availability check failed", "name", name, "err", err)
		h.writeError(w, http.StatusBadGateway, "availability check failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"name": name, "available": available})
}

// HandlePrice serves GET /api/v1/names/{name}/price?duration=<seconds>.
// "price" is the raw oracle quote the chain expects as msg.value;
// "priceFormatted" applies the TLD's display scale.
func (h *Handler) HandlePrice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	label, rec, err := h.splitName(r, name)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "unknown TLD")
		return
	}

	duration := DefaultQuoteDuration
	if raw := r.URL.Query().Get("duration"); raw != "" {
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || secs <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid duration")
			return
		}
		duration = time.Duration(secs) * time.Second
	}

	price, err := h.registrar.Quote(r.Context(), label, rec.TLD, duration)
	if err != nil {
		h.log.Error("Price quote failed", "name", name, "err", err)
		h.writeError(w, http.StatusBadGateway, "price quote failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"name":            name,
		"durationSeconds": int64(duration.Seconds()),
		"price":           price.String(),
		"priceFormatted":  interfaces.FormatNative(rec.NormalizePrice(price)),
	})
}

func (h *Handler) splitName(r *http.Request, name string) (string, tldconfig.TLDRecord, error) {
	return h.registrar.Directory().Current(r.Context()).SplitName(name)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Writing response failed", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
