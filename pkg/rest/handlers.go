package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/edgeflare/dbapi/pkg/httputil"
	"github.com/edgeflare/dbapi/pkg/value"
	"go.uber.org/zap"
)

// messageResponse is the body of every successful write.
type messageResponse struct {
	Message  string                 `json:"message"`
	Identity map[string]value.Value `json:"identity,omitempty"`
	Count    *int64                 `json:"count,omitempty"`
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.requestLogger(r).Warn("health check failed", zap.Error(err))
		httputil.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.store.Tables(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, tables)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.List(r.Context(), r.PathValue("tableName"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, rows)
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("tableName")
	fields, err := s.readFields(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.store.Insert(r.Context(), table, fields)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := messageResponse{Message: "row inserted"}
	// a null identity addresses no row
	if res.Identity != "" && !res.Value.IsNull() {
		w.Header().Set("Location", s.rowLocation(table, res.Value))
		if parsePrefer(r).WantsRepresentation() {
			resp.Identity = map[string]value.Value{res.Identity: res.Value}
			w.Header().Set("Preference-Applied", "return=representation")
		}
	}
	httputil.JSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateByID(w http.ResponseWriter, r *http.Request) {
	fields, err := s.readFields(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.UpdateByID(r.Context(), r.PathValue("tableName"), r.PathValue("rowId"), fields); err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, messageResponse{Message: "row updated"})
}

func (s *Server) handleDeleteByID(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteByID(r.Context(), r.PathValue("tableName"), r.PathValue("rowId")); err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, messageResponse{Message: "row deleted"})
}

// handleUpdateByFields does not report a filter that matched no rows, unlike PUT, unless the
// client asks for the count.
func (s *Server) handleUpdateByFields(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	original, updated, err := decodeUpdate(body)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	n, err := s.store.UpdateByFields(r.Context(), r.PathValue("tableName"), original, updated)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeAffected(w, r, "update completed", n)
}

func (s *Server) handleDeleteByFields(w http.ResponseWriter, r *http.Request) {
	filter, err := s.readFields(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	n, err := s.store.DeleteByFields(r.Context(), r.PathValue("tableName"), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeAffected(w, r, "delete completed", n)
}

func (s *Server) writeAffected(w http.ResponseWriter, r *http.Request, msg string, n int64) {
	resp := messageResponse{Message: msg}
	if parsePrefer(r).WantsCountExact() {
		resp.Count = &n
		w.Header().Set("Preference-Applied", "count=exact")
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// rowLocation is the URL addressing the row with identity id.
func (s *Server) rowLocation(table string, id value.Value) string {
	return s.baseURL + "/api/data/" + url.PathEscape(table) + "/" + url.PathEscape(id.String())
}

// decodeUpdate splits an update-by-match body into its filter and new values.
func decodeUpdate(body []byte) (original, updated value.Fields, err error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil, value.ErrEmptyBody
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err != nil || wrapper == nil {
		return nil, nil, errUpdateShape
	}
	rawOriginal, ok1 := wrapper["original"]
	rawUpdated, ok2 := wrapper["updated"]
	if !ok1 || !ok2 {
		return nil, nil, errUpdateShape
	}

	if original, err = value.DecodeFields(rawOriginal); err != nil {
		return nil, nil, errUpdateShape
	}
	if updated, err = value.DecodeFields(rawUpdated); err != nil {
		return nil, nil, errUpdateShape
	}
	return original, updated, nil
}
