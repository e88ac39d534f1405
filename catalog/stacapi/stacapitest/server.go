// Package stacapitest serves a catalog.Store over the STAC item API for tests.
package stacapitest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hedisam/tiersync/catalog"
)

var (
	pathParamRegex = regexp.MustCompile(`{([^}]+)}`)
)

// Err is an error carrying the http status code to respond with.
type Err struct {
	Message string
	Status  int
}

func (e *Err) Error() string {
	return fmt.Sprintf("Error Code: %d Message: %s", e.Status, e.Message)
}

func NewErrf(status int, msg string, a ...any) *Err {
	return &Err{
		Message: fmt.Sprintf(msg, a...),
		Status:  status,
	}
}

// Func is a handler taking a decoded request and returning the response to encode.
type Func[Req any, Resp any] func(ctx context.Context, req *Req) (*Resp, error)

type Mux interface {
	HandleFunc(pattern string, f func(w http.ResponseWriter, r *http.Request))
}

func RegisterFunc[Req any, Resp any](logger *logrus.Logger, mux Mux, method, endpoint string, f Func[Req, Resp]) {
	var pathParamKeys []string
	matches := pathParamRegex.FindAllStringSubmatch(endpoint, -1)
	for match := range slices.Values(matches) {
		pathParamKeys = append(pathParamKeys, match[1])
	}
	pattern := fmt.Sprintf("%s %s", method, endpoint)
	mux.HandleFunc(pattern, FuncAdapter(logger, f, pathParamKeys...))
}

// FuncAdapter turns f into a http.HandlerFunc. The request is built from the JSON body, then query params, then
// path params, later sources replacing earlier ones.
func FuncAdapter[Req any, Resp any](log *logrus.Logger, f Func[Req, Resp], pathParamKeys ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"pattern": r.Pattern,
		})
		logger.Debug("Handling catalog request")

		reqData := make(map[string]json.RawMessage)
		if r.Body != nil && r.ContentLength > 0 {
			err := json.NewDecoder(r.Body).Decode(&reqData)
			if err != nil {
				logger.WithError(err).Error("Failed to unmarshal request body")
				http.Error(w, fmt.Sprintf("unmarshal request body: %q", err.Error()), http.StatusBadRequest)
				return
			}
		}
		for qParam, val := range r.URL.Query() {
			if len(val) > 0 {
				reqData[qParam], _ = json.Marshal(val[0])
			}
		}
		for param := range slices.Values(pathParamKeys) {
			if val := r.PathValue(param); val != "" {
				reqData[param], _ = json.Marshal(val)
			}
		}

		reqBody, err := json.Marshal(reqData)
		if err != nil {
			logger.WithError(err).Error("Failed to marshal merged request data")
			http.Error(w, fmt.Sprintf("marshal merged request data: %q", err.Error()), http.StatusInternalServerError)
			return
		}

		var req Req
		err = json.Unmarshal(reqBody, &req)
		if err != nil {
			logger.WithError(err).Error("Failed to unmarshal merged request body")
			http.Error(w, fmt.Sprintf("unmarshal merged request body: %q", err.Error()), http.StatusBadRequest)
			return
		}

		resp, err := f(r.Context(), &req)
		if err != nil {
			var stErr *Err
			if !errors.As(err, &stErr) {
				stErr = &Err{
					Message: err.Error(),
					Status:  statusOf(err),
				}
			}
			http.Error(w, stErr.Message, stErr.Status)
			return
		}

		w.Header().Set("Content-Type", "application/geo+json")
		w.WriteHeader(http.StatusOK)
		err = json.NewEncoder(w).Encode(resp)
		if err != nil {
			logger.WithError(err).Error("Failed to write response body")
		}
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrAccessDenied):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Server is a STAC item API backed by a catalog.Store.
type Server struct {
	*httptest.Server

	logger  *logrus.Logger
	store   catalog.Store
	limit   int
	mu      sync.Mutex
	failing []int
	noPut   bool
	calls   map[string]int
}

// NewServer starts a server for store. Listings return at most limit items per page.
func NewServer(logger *logrus.Logger, store catalog.Store, limit int) *Server {
	s := &Server{
		logger: logger,
		store:  store,
		limit:  limit,
		calls:  make(map[string]int),
	}

	mux := http.NewServeMux()
	RegisterFunc(logger, mux, http.MethodGet, "/collections/{collection}/items/{id}", s.getItem)
	RegisterFunc(logger, mux, http.MethodPut, "/collections/{collection}/items/{id}", s.putItem)
	RegisterFunc(logger, mux, http.MethodPost, "/collections/{collection}/items", s.postItem)
	RegisterFunc(logger, mux, http.MethodDelete, "/collections/{collection}/items/{id}", s.deleteItem)
	RegisterFunc(logger, mux, http.MethodGet, "/collections/{collection}/items", s.listItems)
	RegisterFunc(logger, mux, http.MethodGet, "/{$}", s.landing)

	s.Server = httptest.NewServer(s.intercept(mux))
	return s
}

// FailNext makes the next requests fail with the given statuses, one per request.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = append(s.failing, statuses...)
}

// DisablePut makes item PUT requests answer 405, like catalogs that only support creation through POST.
func (s *Server) DisablePut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noPut = true
}

// Calls returns how many requests were received per method.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.Method]++
		var status int
		if len(s.failing) > 0 {
			status = s.failing[0]
			s.failing = s.failing[1:]
		}
		if status == 0 && s.noPut && r.Method == http.MethodPut {
			status = http.StatusMethodNotAllowed
		}
		s.mu.Unlock()

		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type itemRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

func (s *Server) getItem(ctx context.Context, req *itemRequest) (*catalog.Item, error) {
	return s.store.GetItem(ctx, req.Collection, req.ID)
}

func (s *Server) putItem(ctx context.Context, item *catalog.Item) (*catalog.Item, error) {
	err := s.store.UpsertItem(ctx, item)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Server) postItem(ctx context.Context, item *catalog.Item) (*catalog.Item, error) {
	if _, err := s.store.GetItem(ctx, item.Collection, item.ID); err == nil {
		return nil, NewErrf(http.StatusConflict, "item %q already exists", item.ID)
	}
	return s.putItem(ctx, item)
}

type deleteResponse struct{}

func (s *Server) deleteItem(ctx context.Context, req *itemRequest) (*deleteResponse, error) {
	err := s.store.DeleteItem(ctx, req.Collection, req.ID)
	if err != nil {
		return nil, err
	}
	return &deleteResponse{}, nil
}

type listRequest struct {
	Collection string `json:"collection"`
	Token      string `json:"token"`
}

type link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type featureCollection struct {
	Type     string          `json:"type"`
	Features []*catalog.Item `json:"features"`
	Links    []link          `json:"links"`
}

func (s *Server) listItems(ctx context.Context, req *listRequest) (*featureCollection, error) {
	page, err := s.store.ListItems(ctx, req.Collection, req.Token)
	if err != nil {
		return nil, err
	}

	fc := &featureCollection{
		Type:     "FeatureCollection",
		Features: page.Items,
		Links:    []link{},
	}
	if fc.Features == nil {
		fc.Features = []*catalog.Item{}
	}
	if page.NextToken != "" {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(s.limit))
		q.Set("token", page.NextToken)
		fc.Links = append(fc.Links, link{
			Rel:  "next",
			Href: "/collections/" + url.PathEscape(req.Collection) + "/items?" + q.Encode(),
		})
	}

	return fc, nil
}

type landingResponse struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (s *Server) landing(context.Context, *struct{}) (*landingResponse, error) {
	return &landingResponse{Type: "Catalog", ID: "stacapitest"}, nil
}
