package templates

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"slidecraft/internal/httpx"
	"slidecraft/internal/logs"
	"slidecraft/internal/middleware"
)

// RegisterRoutes: публичный список шаблонов.
func RegisterRoutes(r *mux.Router, c *Catalog) {
	r.HandleFunc("/api/templates", func(w http.ResponseWriter, req *http.Request) {
		list, err := c.List()
		if err != nil {
			httpx.WriteError(w, req, err)
			return
		}
		fields := logrus.Fields{"count": len(list), "reqid": middleware.GetRequestID(req)}
		if u, ok := middleware.UserFrom(req.Context()); ok {
			fields["user"] = u.ID
		}
		logs.Logger.WithFields(fields).Debug("templates listed")
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"templates": list})
	}).Methods(http.MethodGet)
}
