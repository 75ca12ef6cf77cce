package api

import (
	"net/http"

	"github.com/google/uuid"
)

// ListChannels возвращает активные каналы.
// GET /api/v1/channels
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channels.ListActive(r.Context())
	if HandleServiceError(w, h.logger, err, "") {
		return
	}

	result := make([]ChannelResponse, len(channels))
	for i, channel := range channels {
		result[i] = ChannelFromDomain(channel)
	}

	List(w, result, len(result))
}

// GetChannel возвращает конфигурацию канала.
// GET /api/v1/channels/{id}
func (h *Handler) GetChannel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid channel id")
		return
	}

	channel, err := h.channels.Get(r.Context(), id)
	if HandleServiceError(w, h.logger, err, "channel not found") {
		return
	}

	Success(w, ChannelFromDomain(*channel))
}

// InvalidateChannel сбрасывает кэш конфигурации канала.
// POST /api/v1/channels/{id}/invalidate
//
// Вызывается внешним конфигурационным слоем после изменения канала,
// чтобы оркестратор увидел новую конфигурацию раньше истечения TTL.
func (h *Handler) InvalidateChannel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid channel id")
		return
	}

	h.channels.Invalidate(id)
	NoContent(w)
}

// ListChannelSlots возвращает предстоящие слоты публикации канала.
// GET /api/v1/channels/{id}/slots?limit=...
func (h *Handler) ListChannelSlots(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid channel id")
		return
	}

	if _, err := h.channels.Get(r.Context(), id); HandleServiceError(w, h.logger, err, "channel not found") {
		return
	}

	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)

	slots, err := h.slots.Upcoming(r.Context(), id, limit)
	if HandleServiceError(w, h.logger, err, "") {
		return
	}

	result := make([]SlotResponse, len(slots))
	for i, slot := range slots {
		result[i] = SlotFromDomain(slot)
	}

	List(w, result, len(result))
}
