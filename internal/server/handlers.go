package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/qianshe/snowflake"
	"github.com/qianshe/snowflake/internal/store"
)

var formats = map[string]bool{"decimal": true, "base58": true, "base62": true, "hex": true, "binary": true}

type idsResponse struct {
	IDs    []string `json:"ids"`
	Format string   `json:"format"`
}

// POST /v1/ids?count=N&format=decimal|base58|base62|hex
func (s *Server) createIDs(w http.ResponseWriter, r *http.Request) {
	count := 1
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxBatch {
			writeError(w, http.StatusBadRequest, "count must be between 1 and "+strconv.Itoa(MaxBatch))
			return
		}
		count = n
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "decimal"
	}
	if !formats[format] {
		writeError(w, http.StatusBadRequest, "unknown format "+strconv.Quote(format))
		return
	}

	ids, err := s.gen.GenerateBatch(r.Context(), count)
	if err != nil {
		s.generationFailed(w, r, err)
		return
	}

	resp := idsResponse{IDs: make([]string, len(ids)), Format: format}
	for i, id := range ids {
		resp.IDs[i] = id.Format(format)
	}
	writeJSON(w, http.StatusCreated, resp)
}

type safeIDResponse struct {
	ID       int64 `json:"id"`
	Fallback bool  `json:"fallback"`
}

// GET /v1/ids/safe
func (s *Server) safeID(w http.ResponseWriter, r *http.Request) {
	sid, err := s.gen.NextSafeIDWithContext(r.Context())
	if err != nil {
		s.generationFailed(w, r, err)
		return
	}
	if sid.Fallback {
		s.logger.Debug("fallback id issued", slog.Int64("id", sid.Value))
	}
	writeJSON(w, http.StatusOK, safeIDResponse{ID: sid.Value, Fallback: sid.Fallback})
}

type parsedIDResponse struct {
	ID           snowflake.ID      `json:"id"`
	TimestampMs  int64             `json:"timestamp_ms"`
	Time         string            `json:"time"`
	DatacenterID int64             `json:"datacenter_id"`
	WorkerID     int64             `json:"worker_id"`
	Sequence     int64             `json:"sequence"`
	Safe         bool              `json:"safe"`
	Encodings    map[string]string `json:"encodings"`
}

// GET /v1/ids/{id}; the path segment may be decimal, base62, base58 or 0x-hex.
func (s *Server) parseID(w http.ResponseWriter, r *http.Request) {
	id, err := snowflake.ParseAny(mux.Vars(r)["id"])
	if err != nil || id < 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	p := s.gen.Parse(id)
	writeJSON(w, http.StatusOK, parsedIDResponse{
		ID:           id,
		TimestampMs:  p.TimestampMillis,
		Time:         p.Time().Format("2006-01-02T15:04:05.000Z07:00"),
		DatacenterID: p.DatacenterID,
		WorkerID:     p.WorkerID,
		Sequence:     p.Sequence,
		Safe:         id.IsSafe(),
		Encodings: map[string]string{
			"base58": id.Base58(),
			"base62": id.Base62(),
			"hex":    id.Hex(),
		},
	})
}

type createPostRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// POST /v1/posts
func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := s.posts.Create(r.Context(), req.Title, req.Body)
	if err != nil {
		s.storeFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GET /v1/posts/{id}
func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	id, err := snowflake.ParseString(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	p, err := s.posts.Get(r.Context(), id)
	if err != nil {
		s.storeFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type listPostsResponse struct {
	Posts      []*store.Post `json:"posts"`
	NextCursor snowflake.ID  `json:"next_cursor,omitempty"`
}

// GET /v1/posts?limit=N&before=ID
func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 20
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > store.MaxListLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(store.MaxListLimit))
			return
		}
		limit = n
	}

	var before snowflake.ID
	if v := q.Get("before"); v != "" {
		id, err := snowflake.ParseString(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid before cursor")
			return
		}
		before = id
	}

	posts, err := s.posts.ListBefore(r.Context(), before, limit)
	if err != nil {
		s.storeFailed(w, r, err)
		return
	}

	resp := listPostsResponse{Posts: posts}
	if len(posts) == limit {
		resp.NextCursor = posts[len(posts)-1].ID
	}
	writeJSON(w, http.StatusOK, resp)
}
