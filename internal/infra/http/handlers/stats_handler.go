package handlers

import (
	"log"
	"net/http"

	"github.com/xavierca1/prospect-agent/internal/entity"
)

type StatsHandler struct {
	Contacts entity.ContactRepositoryInterface
}

func NewStatsHandler(contacts entity.ContactRepositoryInterface) *StatsHandler {
	return &StatsHandler{Contacts: contacts}
}

type StatsResponse struct {
	Total    int                   `json:"total"`
	ByStatus map[entity.Status]int `json:"by_status"`
}

// Handle serves GET /contacts/stats. Every status is listed, zero or not.
func (h *StatsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Contacts.CountByStatus(r.Context())
	if err != nil {
		log.Printf("❌ [http] count contacts: %v", err)
		writeErrorResponse(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not count contacts")
		return
	}

	resp := StatsResponse{ByStatus: make(map[entity.Status]int, len(entity.AllStatuses()))}
	for _, s := range entity.AllStatuses() {
		resp.ByStatus[s] = counts[s]
		resp.Total += counts[s]
	}
	writeJSON(w, http.StatusOK, resp)
}
