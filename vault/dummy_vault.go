package vault

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// DummyServer for unit testing is an in-memory v2 key value engine.
// Approle logins always succeed.
type DummyServer struct {
	*httptest.Server
	mux  sync.Mutex
	data map[string]map[string]interface{}
}

func NewDummyServer() (*DummyServer, *Config) {
	s := &DummyServer{
		data: make(map[string]map[string]interface{}),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s, NewConfig(s.URL, &NoAuth{})
}

func (s *DummyServer) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	path := strings.TrimPrefix(r.URL.Path, "/v1/")
	if path == "auth/approle/login" {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"auth": map[string]interface{}{"client_token": "dummy-token"},
		})
		return
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	switch r.Method {
	case http.MethodGet:
		data, found := s.data[path]
		if !found {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"errors":[]}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"data": data,
			},
		})
	case http.MethodPut, http.MethodPost:
		in := struct {
			Data map[string]interface{} `json:"data"`
		}{}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"errors":["bad request"]}`))
			return
		}
		s.data[path] = in.Data
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		delete(s.data, path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
