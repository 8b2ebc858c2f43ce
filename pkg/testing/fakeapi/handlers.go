/*
Copyright 2026 the DECODE Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package fakeapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/decode-cloud/e2e/pkg/jobs"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"detail": fmt.Sprintf(format, args...)})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		s.lock.Lock()
		_, known := s.tokens[token]
		s.lock.Unlock()

		if !known {
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) accessInfo(w http.ResponseWriter, _ *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"cognito": map[string]string{
			"region":       s.region,
			"client_id":    s.clientID,
			"user_pool_id": s.region + "_fake",
		},
	})
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form: %v", err)
		return
	}

	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")

	s.lock.Lock()
	defer s.lock.Unlock()

	expected, ok := s.users[username]
	if s.rejectTokens || !ok || expected != password {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token := fmt.Sprintf("token-%d", s.nextSerial())
	s.tokens[token] = username

	writeJSON(w, http.StatusOK, map[string]string{
		"id_token":   token,
		"token_type": "bearer",
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Email    string   `json:"email"`
		Password string   `json:"password"`
		Groups   []string `json:"groups"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: %v", err)
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.users[request.Email]; ok {
		writeError(w, http.StatusConflict, "user %s already exists", request.Email)
		return
	}

	s.users[request.Email] = request.Password

	writeJSON(w, http.StatusCreated, map[string]any{
		"email":  request.Email,
		"groups": request.Groups,
	})
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var spec jobs.Spec

	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: %v", err)
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	id := strconv.Itoa(s.nextSerial())

	s.jobs[id] = &job{
		id:     id,
		spec:   spec,
		status: jobs.StatusQueued,
	}

	writeJSON(w, http.StatusCreated, s.jobBody(id, spec.JobName, jobs.StatusQueued))
}

func (s *Server) jobBody(id, name string, status jobs.Status) map[string]any {
	body := map[string]any{
		"id":       id,
		"job_name": name,
		"status":   status,
	}

	if s.numericIDs {
		n, _ := strconv.Atoi(id)
		body["id"] = n
	}

	return body
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.lock.Lock()
	defer s.lock.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		writeError(w, http.StatusNotFound, "job %s not found", id)
		return
	}

	if !j.cancelled {
		s.advance(j)
	}

	writeJSON(w, http.StatusOK, s.jobBody(j.id, j.spec.JobName, j.status))
}

// advance moves a job to its next scripted status.
func (s *Server) advance(j *job) {
	if len(s.statuses) == 0 {
		return
	}

	next := s.statuses[min(j.reads, len(s.statuses)-1)]
	j.reads++

	if next == jobs.StatusFinished && j.status != jobs.StatusFinished && s.artifacts != nil {
		snapshot := make(map[string][]byte, len(s.objects))

		for p, content := range s.objects {
			snapshot[p] = content
		}

		for p, content := range s.artifacts(j.spec, snapshot) {
			s.objects[p] = content
		}
	}

	j.status = next
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.lock.Lock()
	defer s.lock.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		writeError(w, http.StatusNotFound, "job %s not found", id)
		return
	}

	if s.cancelStatus != 0 {
		writeError(w, s.cancelStatus, "job %s cannot be cancelled", id)
		return
	}

	j.cancelled = true
	j.status = jobs.StatusCancelled

	w.WriteHeader(http.StatusNoContent)
}

func filePath(r *http.Request) (string, error) {
	return url.PathUnescape(chi.URLParam(r, "*"))
}

func (s *Server) getFiles(w http.ResponseWriter, r *http.Request) {
	p, err := filePath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path: %v", err)
		return
	}

	if remote, ok := strings.CutSuffix(p, "/url"); ok {
		s.downloadDescriptor(w, remote)
		return
	}

	recursive, _ := strconv.ParseBool(r.URL.Query().Get("recursive"))

	s.list(w, p, recursive)
}

func (s *Server) postFiles(w http.ResponseWriter, r *http.Request) {
	p, err := filePath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path: %v", err)
		return
	}

	remote, ok := strings.CutSuffix(p, "/url")
	if !ok || remote == "" {
		writeError(w, http.StatusNotFound, "unknown route")
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	id, t := s.newTicket(http.MethodPost, remote)

	writeJSON(w, http.StatusOK, map[string]any{
		"method": http.MethodPost,
		"url":    s.server.URL + "/storage/upload/" + id,
		"headers": map[string]string{
			"X-Storage-Ticket": id,
		},
		"data": map[string]string{
			"key":       remote,
			"signature": t.signature,
		},
	})
}

func (s *Server) downloadDescriptor(w http.ResponseWriter, remote string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.objects[remote]; !ok {
		writeError(w, http.StatusNotFound, "file %s not found", remote)
		return
	}

	id, t := s.newTicket(http.MethodGet, remote)

	writeJSON(w, http.StatusOK, map[string]any{
		"method": http.MethodGet,
		"url":    s.server.URL + "/storage/objects/" + id,
		"headers": map[string]string{
			"X-Storage-Ticket": id,
		},
		"params": map[string]string{
			"signature": t.signature,
		},
	})
}

// list returns the files below prefix, or 404 when there are none.  The
// root always lists.
func (s *Server) list(w http.ResponseWriter, prefix string, recursive bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	dir := prefix
	if dir != "" && !strings.HasSuffix(dir, "/") {
		dir += "/"
	}

	paths := s.pathsLocked(dir)

	if _, ok := s.objects[prefix]; ok && prefix != "" {
		paths = append([]string{prefix}, paths...)
	}

	if len(paths) == 0 && prefix != "" {
		writeError(w, http.StatusNotFound, "%s not found", prefix)
		return
	}

	entries := []map[string]string{}
	seen := map[string]bool{}

	for _, p := range paths {
		if !recursive {
			rest := strings.TrimPrefix(p, dir)
			if child, _, nested := strings.Cut(rest, "/"); nested {
				p = dir + child + "/"
			}
		}

		if seen[p] {
			continue
		}

		seen[p] = true

		entries = append(entries, map[string]string{"path": p})
	}

	writeJSON(w, http.StatusOK, entries)
}

// claim validates a storage request against its ticket and consumes it.
func (s *Server) claim(w http.ResponseWriter, r *http.Request, method, signature string) (*ticket, bool) {
	id := chi.URLParam(r, "ticket")

	s.lock.Lock()
	defer s.lock.Unlock()

	s.storageHeaders = append(s.storageHeaders, r.Header.Clone())

	t, ok := s.tickets[id]

	switch {
	case !ok:
		writeError(w, http.StatusForbidden, "unknown or used ticket")
		return nil, false
	case t.method != method:
		writeError(w, http.StatusMethodNotAllowed, "ticket issued for %s", t.method)
		return nil, false
	case r.Header.Get("X-Storage-Ticket") != id:
		writeError(w, http.StatusForbidden, "missing ticket header")
		return nil, false
	case r.Header.Get("Authorization") != "":
		writeError(w, http.StatusBadRequest, "storage does not accept API credentials")
		return nil, false
	case signature != t.signature:
		writeError(w, http.StatusForbidden, "signature mismatch")
		return nil, false
	}

	delete(s.tickets, id)

	return t, true
}

func (s *Server) storageUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body: %v", err)
		return
	}

	t, ok := s.claim(w, r, http.MethodPost, r.FormValue("signature"))
	if !ok {
		return
	}

	if key := r.FormValue("key"); key != t.path {
		writeError(w, http.StatusBadRequest, "key %q does not match ticket", key)
		return
	}

	f, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file part: %v", err)
		return
	}

	defer f.Close()

	var content strings.Builder

	if _, err := io.Copy(&content, f); err != nil {
		writeError(w, http.StatusBadRequest, "reading file part: %v", err)
		return
	}

	s.PutObject(t.path, []byte(content.String()))

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) storageDownload(w http.ResponseWriter, r *http.Request) {
	t, ok := s.claim(w, r, http.MethodGet, r.URL.Query().Get("signature"))
	if !ok {
		return
	}

	content, ok := s.Object(t.path)
	if !ok {
		writeError(w, http.StatusNotFound, "%s not found", t.path)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(content)
}
