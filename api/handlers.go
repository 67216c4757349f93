/*
handlers.go - HTTP handlers for the slip API

PURPOSE:
  Exposes slip persistence and identity issuance via REST. Handles HTTP
  request/response, JSON serialization, and delegates to the store and
  the domain validator.

ENDPOINTS:
  GET    /api/slips               Search slip headers
  POST   /api/slips               Save one slip (header + full detail set)
  GET    /api/slips/{id}          Get one slip header
  GET    /api/slips/{id}/details  Get a slip's detail lines
  POST   /api/slips/ids           Issue a new header id
  POST   /api/slips/delete        Tombstone a slip
  POST   /api/slips/copy          Copy a slip under a fresh identity
  POST   /api/serials             Issue the next (office, date) serial

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: malformed body, unparseable amounts, validation failures
         (the error field carries the user-facing message verbatim)
  - 404: unknown slip
  - 500: storage failures

  The server re-runs the domain validator on every save: clients are
  expected to validate first, but the invariants hold regardless of who
  is calling.

SEE ALSO:
  - dto.go: request/response data structures
  - server.go: router setup and middleware
  - store/sqlite/sqlite.go: persistence
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/slip-engine/slip"
	"github.com/warp/slip-engine/store/sqlite"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store
	Log   zerolog.Logger
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, log zerolog.Logger) *Handler {
	return &Handler{
		Store: store,
		Log:   log.With().Str("component", "api").Logger(),
	}
}

// =============================================================================
// SEARCH AND FETCH
// =============================================================================

// SearchSlips returns headers matching the query filters.
// GET /api/slips?office_code=&dept_code=&date_from=&date_to=
func (h *Handler) SearchSlips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	dateFrom, err := parseDate(q.Get("date_from"), "date_from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date_from", err)
		return
	}
	dateTo, err := parseDate(q.Get("date_to"), "date_to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date_to", err)
		return
	}

	headers, err := h.Store.SearchHeaders(r.Context(), slip.SearchParams{
		OfficeCode: q.Get("office_code"),
		DeptCode:   q.Get("dept_code"),
		DateFrom:   dateFrom,
		DateTo:     dateTo,
	})
	if err != nil {
		h.Log.Error().Err(err).Msg("header search failed")
		writeError(w, http.StatusInternalServerError, "Failed to search slips", err)
		return
	}

	dtos := make([]HeaderDTO, len(headers))
	for i, hdr := range headers {
		dtos[i] = ToHeaderDTO(hdr)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSlipHeader returns one slip header.
// GET /api/slips/{id}
func (h *Handler) GetSlipHeader(w http.ResponseWriter, r *http.Request) {
	id := slip.HeaderID(chi.URLParam(r, "id"))

	hdr, err := h.Store.GetHeader(r.Context(), id)
	if errors.Is(err, slip.ErrSlipNotFound) {
		writeError(w, http.StatusNotFound, "Slip not found", err)
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Str("header_id", string(id)).Msg("header fetch failed")
		writeError(w, http.StatusInternalServerError, "Failed to fetch slip", err)
		return
	}
	writeJSON(w, http.StatusOK, ToHeaderDTO(*hdr))
}

// GetSlipDetails returns a slip's detail lines in sequence order.
// GET /api/slips/{id}/details
func (h *Handler) GetSlipDetails(w http.ResponseWriter, r *http.Request) {
	id := slip.HeaderID(chi.URLParam(r, "id"))

	lines, err := h.Store.GetDetails(r.Context(), id)
	if err != nil {
		h.Log.Error().Err(err).Str("header_id", string(id)).Msg("detail fetch failed")
		writeError(w, http.StatusInternalServerError, "Failed to fetch details", err)
		return
	}
	writeJSON(w, http.StatusOK, ToDetailDTOs(lines))
}

// =============================================================================
// IDENTITY ISSUANCE
// =============================================================================

// CreateHeaderID issues a fresh slip header id.
// POST /api/slips/ids
func (h *Handler) CreateHeaderID(w http.ResponseWriter, r *http.Request) {
	id := h.Store.NewHeaderID()
	writeJSON(w, http.StatusCreated, HeaderIDDTO{HeaderID: string(id)})
}

// NextSerial issues the next serial for an (office, date) pair and
// echoes the authoritative office/department/date.
// POST /api/serials
func (h *Handler) NextSerial(w http.ResponseWriter, r *http.Request) {
	var req SerialRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := parseDate(req.SlipDate, "slip_date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid slip_date", err)
		return
	}

	res, err := h.Store.NextSerial(r.Context(), slip.SerialRequest{
		OfficeCode: req.OfficeCode,
		DeptCode:   req.DeptCode,
		SlipDate:   date,
	})
	if err != nil {
		h.Log.Error().Err(err).Str("office", req.OfficeCode).Msg("serial issuance failed")
		writeError(w, http.StatusInternalServerError, "Failed to issue serial", err)
		return
	}

	writeJSON(w, http.StatusCreated, SerialDTO{
		SerialNo:   res.SerialNo,
		OfficeCode: res.OfficeCode,
		DeptCode:   res.DeptCode,
		SlipDate:   res.SlipDate.Format(dateFormat),
	})
}

// =============================================================================
// SAVE / DELETE / COPY
// =============================================================================

// SaveSlip persists one slip atomically after re-validating it.
// POST /api/slips
func (h *Handler) SaveSlip(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSave(w, r)
	if !ok {
		return
	}

	if err := slip.Validate(&req.Header, req.Details); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	if err := h.Store.SaveSlip(r.Context(), req); err != nil {
		h.Log.Error().Err(err).Str("header_id", string(req.Header.ID)).Msg("save failed")
		writeError(w, http.StatusInternalServerError, "Failed to save slip", err)
		return
	}

	h.Log.Info().
		Str("header_id", string(req.Header.ID)).
		Int("serial_no", req.Header.SerialNo).
		Int("lines", len(req.Details)).
		Msg("slip saved")
	writeJSON(w, http.StatusOK, ToHeaderDTO(req.Header))
}

// DeleteSlip tombstones a slip. The client submits the full aggregate
// with every row status forced Deleted; no validation runs - a slip
// being deleted need not balance.
// POST /api/slips/delete
func (h *Handler) DeleteSlip(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSave(w, r)
	if !ok {
		return
	}
	if req.Header.RowStatus != slip.RowDeleted {
		writeError(w, http.StatusBadRequest, "Delete requires row status D", nil)
		return
	}

	if err := h.Store.SaveSlip(r.Context(), req); err != nil {
		if errors.Is(err, slip.ErrSlipNotFound) {
			writeError(w, http.StatusNotFound, "Slip not found", err)
			return
		}
		h.Log.Error().Err(err).Str("header_id", string(req.Header.ID)).Msg("delete failed")
		writeError(w, http.StatusInternalServerError, "Failed to delete slip", err)
		return
	}

	h.Log.Info().Str("header_id", string(req.Header.ID)).Msg("slip deleted")
	w.WriteHeader(http.StatusNoContent)
}

// CopySlip stores the submitted aggregate under a fresh identity.
// POST /api/slips/copy
func (h *Handler) CopySlip(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSave(w, r)
	if !ok {
		return
	}

	if err := slip.Validate(&req.Header, req.Details); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	hdr, err := h.Store.CopySlip(r.Context(), req)
	if err != nil {
		h.Log.Error().Err(err).Msg("copy failed")
		writeError(w, http.StatusInternalServerError, "Failed to copy slip", err)
		return
	}

	h.Log.Info().
		Str("header_id", string(hdr.ID)).
		Int("serial_no", hdr.SerialNo).
		Msg("slip copied")
	writeJSON(w, http.StatusCreated, ToHeaderDTO(hdr))
}

func (h *Handler) decodeSave(w http.ResponseWriter, r *http.Request) (slip.SaveRequest, bool) {
	var body SaveSlipRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return slip.SaveRequest{}, false
	}
	req, err := FromSaveRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid slip payload", err)
		return slip.SaveRequest{}, false
	}
	return req, true
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
