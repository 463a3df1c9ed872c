package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/realestateinvestorceo/FirstPulse1.2/internal/engine"
	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxBody bounds request bodies.
const maxBody = 32 << 20

type errorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
	Field   string      `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Code: apperr.CodeUnknown, Message: "internal error"}
	if e, ok := apperr.As(err); ok {
		body = errorBody{Code: e.Code(), Message: e.Message(), Field: e.Field()}
	}
	status := apperr.HTTPStatus(body.Code)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, body)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("body", "request body is required")
		}
		return apperr.Wrap(err, apperr.CodeValidation, "malformed request body")
	}
	return nil
}

func (h *handler) ingestProperties(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Properties []model.Property `json:"properties"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.IngestProperties(r.Context(), req.Properties); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"ingested": len(req.Properties)})
}

func (h *handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accts, err := h.svc.ListAccounts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accts)
}

func (h *handler) upsertAccount(w http.ResponseWriter, r *http.Request) {
	var acct model.Account
	if err := decode(r, &acct); err != nil {
		h.fail(w, r, err)
		return
	}
	acct.ID = accountID(r)
	if err := h.svc.UpsertAccount(r.Context(), acct); err != nil {
		h.fail(w, r, err)
		return
	}
	saved, err := h.svc.GetAccount(r.Context(), acct.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.registry != nil {
		if err := h.registry.RegisterAccount(saved); err != nil {
			h.log.Warn("schedule account", zap.String("account", saved.ID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *handler) getAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.svc.GetAccount(r.Context(), accountID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (h *handler) filterEligible(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Properties []model.Property `json:"properties"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.svc.FilterEligible(r.Context(), accountID(r), req.Properties)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"properties": out})
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RefreshScores(r.Context(), accountID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) generate(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.GenerateBatch(r.Context(), accountID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *handler) listBatches(w http.ResponseWriter, r *http.Request) {
	bs, err := h.svc.ListBatches(r.Context(), accountID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bs)
}

func (h *handler) estimate(w http.ResponseWriter, r *http.Request) {
	est, err := h.svc.EstimateSkipTrace(r.Context(), accountID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

func (h *handler) execute(w http.ResponseWriter, r *http.Request) {
	var opts engine.ExecuteOptions
	if r.ContentLength != 0 {
		if err := decode(r, &opts); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	x, err := h.svc.ExecuteBatch(r.Context(), accountID(r), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, x)
}

func (h *handler) redownload(w http.ResponseWriter, r *http.Request) {
	x, err := h.svc.RedownloadBatch(r.Context(), accountID(r), chi.URLParam(r, "batchID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, x)
}

func (h *handler) tracking(w http.ResponseWriter, r *http.Request) {
	ts, err := h.svc.GetTracking(r.Context(), accountID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (h *handler) wallet(w http.ResponseWriter, r *http.Request) {
	wl, err := h.svc.GetWallet(r.Context(), accountID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wl)
}

func (h *handler) credit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	tx, err := h.svc.CreditWallet(r.Context(), accountID(r), req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *handler) applyStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PropertyID string               `json:"property_id"`
		Status     model.TrackingStatus `json:"status"`
		Reason     string               `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.PropertyID == "" {
		h.fail(w, r, apperr.Validation("property_id", "property id is required"))
		return
	}
	if err := h.svc.ApplyStatus(r.Context(), accountID(r), req.PropertyID, req.Status, req.Reason); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) suppress(w http.ResponseWriter, r *http.Request) {
	var list model.SuppressionList
	if err := decode(r, &list); err != nil {
		h.fail(w, r, err)
		return
	}
	n, err := h.svc.ApplySuppressionList(r.Context(), accountID(r), list)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"suppressed": n})
}
