package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"slidecraft/internal/apperr"
	"slidecraft/internal/logs"
)

// Problem представляет ответ об ошибке в стиле RFC 7807.
type Problem struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`            // краткое описание для человека
	Status int    `json:"status"`           // HTTP код
	Code   string `json:"code"`             // машиночитаемая причина
	Detail string `json:"detail,omitempty"` // stderr конвертера и т.п.
	Extra  any    `json:"extra,omitempty"`
}

func WriteProblem(w http.ResponseWriter, status int, code, title, detail string, extra any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Title:  title,
		Status: status,
		Code:   code,
		Detail: detail,
		Extra:  extra,
	})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError переводит ошибку домена в problem-ответ. Внутренние причины
// (Err) только логируются, клиенту уходит Message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := kind.Status()

	title := "internal error"
	detail := ""
	var e *apperr.Error
	if errors.As(err, &e) {
		title = e.Message
		if kind == apperr.KindConversion {
			detail = e.Detail
		}
	}

	if status >= http.StatusInternalServerError {
		logs.Logger.WithFields(logrus.Fields{
			"method": r.Method,
			"uri":    r.RequestURI,
			"code":   kind.Code(),
		}).WithError(err).Error("request failed")
	}
	WriteProblem(w, status, kind.Code(), title, detail, nil)
}
