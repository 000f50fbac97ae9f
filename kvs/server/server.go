// Copyright 2025 The Canopy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package server implements the kvs service module: an HTTP front end that
// drives lookups against the content cache, backfilling the cache from the
// blob store whenever a lookup stalls on a missing reference.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"canopy.io/bind"
	"canopy.io/canopy"
	"canopy.io/errors"
	"canopy.io/heartbeat"
	"canopy.io/kvs/cache"
	"canopy.io/kvs/lookup"
	"canopy.io/kvs/proto"
	"canopy.io/log"
	"canopy.io/store"
)

// ModuleName is the service name the server registers under.
const ModuleName = "kvs"

const maxBlobSize = 16 << 20

// Server is the kvs service module.
type Server struct {
	config Config
	store  store.BlobStore
	cache  *cache.Cache
	heart  *heartbeat.Heartbeat
	router *mux.Router

	// mu protects rootRef.
	mu      sync.RWMutex
	rootRef canopy.Ref
}

var _ bind.Module = (*Server)(nil)

// New creates a server over the given blob store. The server owns a fresh
// content cache and heartbeat; the heartbeat expires cache entries older
// than the configured age.
func New(config Config, blobs store.BlobStore) (*Server, error) {
	const op = "kvs/server.New"
	if blobs == nil {
		return nil, errors.E(op, errors.Invalid, errors.Str("no blob store"))
	}
	s := &Server{
		config: config,
		store:  blobs,
		cache:  cache.New(config.CacheSize),
		heart:  heartbeat.New(),
	}
	if config.HeartRate != "" {
		if err := s.heart.SetRateString(config.HeartRate); err != nil {
			return nil, errors.E(op, err)
		}
	}
	s.heart.SetCallback(func(epoch canopy.Epoch) {
		if n := s.cache.Expire(epoch, s.config.MaxAge); n > 0 {
			log.Debug.Printf("kvs: epoch %d expired %d cached nodes", epoch, n)
		}
	})

	r := mux.NewRouter()
	r.HandleFunc("/kvs/{key}", s.handleLookup).Methods("GET")
	r.HandleFunc("/data", s.handlePutData).Methods("POST")
	r.HandleFunc("/root", s.handleGetRoot).Methods("GET")
	r.HandleFunc("/root", s.handleSetRoot).Methods("PUT")
	r.HandleFunc("/modules", s.handleModules).Methods("GET")
	s.router = r
	return s, nil
}

// Name implements bind.Module.
func (s *Server) Name() string {
	return ModuleName
}

// Status implements bind.Module.
func (s *Server) Status() string {
	return "running"
}

// Handler returns the server's HTTP handler, for mounting and for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetRoot sets the reference of the root directory. Lookups fail until a
// root is set.
func (s *Server) SetRoot(ref canopy.Ref) error {
	const op = "kvs/server.SetRoot"
	if ref == "" {
		return errors.E(op, errors.Invalid, errors.Str("empty root reference"))
	}
	s.mu.Lock()
	s.rootRef = ref
	s.mu.Unlock()
	return nil
}

// Root returns the current root reference.
func (s *Server) Root() canopy.Ref {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rootRef
}

// Serve runs the heartbeat and the HTTP listener until ctx is canceled or
// the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.heart.Start(); err != nil {
		return err
	}
	defer s.heart.Stop()

	srv := &http.Server{
		Addr:    s.config.Addr,
		Handler: s.router,
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("kvs: listening on %s", s.config.Addr)
		err := srv.ListenAndServe()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// resolve drives a lookup of key to completion, loading each missing
// reference from the blob store into the cache as the engine reports it.
func (s *Server) resolve(key canopy.Key, flags canopy.Flag) (interface{}, error) {
	root := s.Root()
	if root == "" {
		return nil, errors.E("kvs/server.resolve", errors.Invalid, errors.Str("no root set"))
	}
	lh, err := lookup.New(s.cache, s.heart.Epoch(), root, "", key, flags)
	if err != nil {
		return nil, err
	}
	for !lh.Drive() {
		ref := lh.MissingRef()
		data, err := s.store.Get(ref)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Fill(ref, data, s.heart.Epoch()); err != nil {
			return nil, err
		}
	}
	if err := lh.Err(); err != nil {
		return nil, err
	}
	return lh.Value(), nil
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	bind.Touch(ModuleName)
	reqID := uuid.NewString()
	key := canopy.Key(mux.Vars(r)["key"])

	flags, err := proto.ParseFlags(r.URL.Query().Get("flags"))
	if err != nil {
		writeLookup(w, proto.LookupResponse{Errnum: proto.Errnum(err)})
		return
	}
	val, err := s.resolve(key, flags)
	if err != nil {
		log.Debug.Printf("kvs: lookup %s key=%q flags=%d: %v", reqID, key, flags, err)
		writeLookup(w, proto.LookupResponse{Errnum: proto.Errnum(err)})
		return
	}
	if val == nil {
		// The engine reports absence as a clean, empty completion;
		// on the wire that is ENOENT.
		writeLookup(w, proto.LookupResponse{Errnum: proto.ENOENT})
		return
	}
	raw, err := proto.EncodeValue(val)
	if err != nil {
		log.Error.Printf("kvs: lookup %s key=%q: encode: %v", reqID, key, err)
		writeLookup(w, proto.LookupResponse{Errnum: proto.Errnum(err)})
		return
	}
	log.Debug.Printf("kvs: lookup %s key=%q flags=%d ok", reqID, key, flags)
	writeLookup(w, proto.LookupResponse{Val: raw})
}

// writeLookup maps the response errnum onto an HTTP status and sends the
// response body.
func writeLookup(w http.ResponseWriter, resp proto.LookupResponse) {
	status := http.StatusOK
	switch resp.Errnum {
	case 0:
	case proto.ENOENT:
		status = http.StatusNotFound
	case proto.EINVAL, proto.EISDIR, proto.ENOTDIR, proto.ELOOP, proto.EPERM:
		status = http.StatusBadRequest
	case proto.EAGAIN:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}

func (s *Server) handlePutData(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBlobSize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ref, err := s.store.Put(data)
	if err != nil {
		log.Error.Printf("kvs: put data: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]canopy.Ref{"ref": ref})
}

func (s *Server) handleGetRoot(w http.ResponseWriter, r *http.Request) {
	root := s.Root()
	if root == "" {
		http.Error(w, "no root set", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]canopy.Ref{"rootref": root})
}

func (s *Server) handleSetRoot(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RootRef canopy.Ref `json:"rootref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.SetRoot(body.RootRef); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.Printf("kvs: root set to %s", body.RootRef)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	data, err := bind.EncodeList(bind.List())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error.Printf("kvs: writing response: %v", err)
	}
}
