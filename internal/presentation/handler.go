package presentation

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"

	"slidecraft/internal/apperr"
	"slidecraft/internal/converter"
	"slidecraft/internal/httpx"
	"slidecraft/internal/logs"
	"slidecraft/internal/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes вешает маршруты на r; аутентификация: на стороне r.
func RegisterRoutes(r *mux.Router, h *Handler) {
	r.HandleFunc("/convert", h.Convert).Methods(http.MethodPost)
	r.HandleFunc("/history", h.History).Methods(http.MethodGet)
	r.HandleFunc("/conversion/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/conversion/{id}/file", h.Download).Methods(http.MethodGet)
}

type convertRequest struct {
	Markdown string            `json:"markdown"`
	Images   []converter.Image `json:"images" validate:"omitempty,max=20,dive"`
	Template string            `json:"template" validate:"omitempty,max=255"`
}

func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		httpx.WriteError(w, r, apperr.Unauthorized("Authentication required.", apperr.ErrMissingToken))
		return
	}
	var req convertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Generate(r.Context(), user, converter.Request{
		Markdown: req.Markdown,
		Images:   req.Images,
		Template: req.Template,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	defer res.Close()

	f, err := os.Open(res.Output.Path)
	if err != nil {
		httpx.WriteError(w, r, apperr.Dependency("Cannot read generated presentation", err))
		return
	}
	defer f.Close()

	hdr := w.Header()
	hdr.Set("Content-Type", ContentType)
	hdr.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Output.Filename))
	if st, err := f.Stat(); err == nil {
		hdr.Set("Content-Length", strconv.FormatInt(st.Size(), 10))
	}
	if res.Record != nil {
		hdr.Set("X-Conversion-Id", res.Record.ID)
	}
	if res.HistoryErr != nil {
		hdr.Set("X-History-Warning", "presentation was generated but not saved to history")
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		logs.Logger.WithError(err).WithField("reqid", middleware.GetRequestID(r)).Warn("send presentation")
	}
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		httpx.WriteError(w, r, apperr.Unauthorized("Authentication required.", apperr.ErrMissingToken))
		return
	}
	rows, err := h.svc.History(r.Context(), user.ID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"conversions": rows})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		httpx.WriteError(w, r, apperr.Unauthorized("Authentication required.", apperr.ErrMissingToken))
		return
	}
	rec, err := h.svc.Get(r.Context(), mux.Vars(r)["id"], user.ID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"conversion": rec})
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		httpx.WriteError(w, r, apperr.Unauthorized("Authentication required.", apperr.ErrMissingToken))
		return
	}
	rec, obj, err := h.svc.Open(r.Context(), mux.Vars(r)["id"], user.ID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	defer obj.Body.Close()

	hdr := w.Header()
	hdr.Set("Content-Type", ContentType)
	hdr.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.Filename))
	if obj.ContentLength > 0 {
		hdr.Set("Content-Length", strconv.FormatInt(obj.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		logs.Logger.WithError(err).WithField("conversion", rec.ID).Warn("send stored presentation")
	}
}
