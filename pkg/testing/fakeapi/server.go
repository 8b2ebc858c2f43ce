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

// Package fakeapi is an in-process fake of the job API and the object
// storage it hands out transfer descriptors for.  Jobs advance through a
// scripted status sequence, one step per status read.
package fakeapi

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"

	"github.com/decode-cloud/e2e/pkg/jobs"
)

// Default identity provider configuration served by /access_info.
const (
	DefaultRegion   = "eu-central-1"
	DefaultClientID = "fake-client-id"
)

// ArtifactFunc returns the files a finished job stores, keyed by path.
// objects is a snapshot of storage when the job finishes.
type ArtifactFunc func(spec jobs.Spec, objects map[string][]byte) map[string][]byte

// DefaultArtifacts stores the job's config inputs back and a single model.
func DefaultArtifacts(spec jobs.Spec, objects map[string][]byte) map[string][]byte {
	artifacts := map[string][]byte{}

	prefix := "config/" + spec.Attributes.FilesDown.ConfigID + "/"

	for p, content := range objects {
		if strings.HasPrefix(p, prefix) {
			artifacts[path.Join("artifact", spec.JobName, "training", path.Base(p))] = content
		}
	}

	artifacts[path.Join("artifact", spec.JobName, "models", "model_0.pt")] = []byte("model")

	return artifacts
}

type Option func(*Server)

// WithStatuses scripts the status reported by successive reads of a job.
// The final status repeats.
func WithStatuses(statuses ...jobs.Status) Option {
	return func(s *Server) {
		s.statuses = statuses
	}
}

// WithUser registers an account up front.
func WithUser(email, password string) Option {
	return func(s *Server) {
		s.users[email] = password
	}
}

// WithRejectedTokens makes the token endpoint reject every exchange.
func WithRejectedTokens() Option {
	return func(s *Server) {
		s.rejectTokens = true
	}
}

// WithAccessInfo sets the identity provider the API advertises.
func WithAccessInfo(region, clientID string) Option {
	return func(s *Server) {
		s.region = region
		s.clientID = clientID
	}
}

// WithToken accepts a pre-issued bearer token.
func WithToken(token string) Option {
	return func(s *Server) {
		s.tokens[token] = ""
	}
}

// WithArtifacts replaces what finished jobs store.  Nil stores nothing.
func WithArtifacts(fn ArtifactFunc) Option {
	return func(s *Server) {
		s.artifacts = fn
	}
}

// WithLogger logs every request the fake serves.
func WithLogger(logger logr.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithNumericIDs issues job ids as JSON numbers.
func WithNumericIDs() Option {
	return func(s *Server) {
		s.numericIDs = true
	}
}

// WithCancelFailure makes cancelling any job fail with the given status.
func WithCancelFailure(status int) Option {
	return func(s *Server) {
		s.cancelStatus = status
	}
}

type job struct {
	id        string
	spec      jobs.Spec
	reads     int
	status    jobs.Status
	cancelled bool
}

// ticket authorises a single storage transfer.
type ticket struct {
	path      string
	method    string
	signature string
}

// Server is a running fake.
type Server struct {
	server *httptest.Server

	lock sync.Mutex

	statuses     []jobs.Status
	users        map[string]string
	tokens       map[string]string
	rejectTokens bool
	region       string
	clientID     string
	artifacts    ArtifactFunc
	numericIDs   bool
	cancelStatus int
	logger       logr.Logger

	objects map[string][]byte
	jobs    map[string]*job
	tickets map[string]*ticket
	calls   map[string]int
	serial  int

	storageHeaders []http.Header
}

// New starts a fake.  Close it when done.
func New(opts ...Option) (*Server, error) {
	s := &Server{
		statuses:  jobs.Lifecycle(),
		users:     map[string]string{},
		tokens:    map[string]string{},
		region:    DefaultRegion,
		clientID:  DefaultClientID,
		artifacts: DefaultArtifacts,
		objects:   map[string][]byte{},
		jobs:      map[string]*job{},
		tickets:   map[string]*ticket{},
		calls:     map[string]int{},
		logger:    logr.Discard(),
	}

	for _, o := range opts {
		o(s)
	}

	validator, err := newValidator()
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	router.Use(s.count)
	router.Use(validator.middleware)

	router.Get("/access_info", s.accessInfo)
	router.Post("/token", s.token)
	router.Post("/user", s.register)

	router.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/jobs", s.submitJob)
		r.Get("/jobs/{id}", s.getJob)
		r.Delete("/jobs/{id}", s.cancelJob)
		r.Get("/files/*", s.getFiles)
		r.Post("/files/*", s.postFiles)
	})

	router.Post("/storage/upload/{ticket}", s.storageUpload)
	router.Get("/storage/objects/{ticket}", s.storageDownload)

	s.server = httptest.NewServer(router)

	return s, nil
}

// URL is the API base URL.
func (s *Server) URL() string {
	return s.server.URL
}

// Client returns an HTTP client for the server.
func (s *Server) Client() *http.Client {
	return s.server.Client()
}

func (s *Server) Close() {
	s.server.Close()
}

// Calls returns how often a route was requested, e.g. Calls("POST", "/token").
func (s *Server) Calls(method, route string) int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.calls[method+" "+route]
}

// Object returns a stored file.
func (s *Server) Object(p string) ([]byte, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	content, ok := s.objects[p]

	return content, ok
}

// PutObject stores a file directly, bypassing the API.
func (s *Server) PutObject(p string, content []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.objects[p] = content
}

// Paths returns every stored path in order.
func (s *Server) Paths() []string {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.pathsLocked("")
}

// StorageHeaders returns the headers of every storage request received.
func (s *Server) StorageHeaders() []http.Header {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([]http.Header{}, s.storageHeaders...)
}

// JobSpec returns the document a job was submitted with.
func (s *Server) JobSpec(id string) (jobs.Spec, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return jobs.Spec{}, false
	}

	return j.spec, true
}

// Cancelled reports whether a job was cancelled.
func (s *Server) Cancelled(id string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	j, ok := s.jobs[id]

	return ok && j.cancelled
}

func (s *Server) pathsLocked(prefix string) []string {
	paths := make([]string, 0, len(s.objects))

	for p := range s.objects {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}

	sort.Strings(paths)

	return paths
}

func (s *Server) nextSerial() int {
	s.serial++

	return s.serial
}

func (s *Server) newTicket(method, p string) (string, *ticket) {
	n := s.nextSerial()

	id := fmt.Sprintf("t%d", n)

	t := &ticket{
		path:      p,
		method:    method,
		signature: fmt.Sprintf("sig-%d", n),
	}

	s.tickets[id] = t

	return id, t
}

// count records the route pattern of every API request.
func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		s.lock.Lock()
		s.calls[r.Method+" "+route]++
		s.lock.Unlock()

		s.logger.V(1).Info("served request", "method", r.Method, "path", r.URL.Path, "route", route)
	})
}
