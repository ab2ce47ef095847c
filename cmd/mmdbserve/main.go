// Command mmdbserve serves IP lookups from a MaxMind DB file over HTTP.
//
// Configuration comes from the environment (a .env file is honored):
//
//	MMDB_PATH         path to the database file (default GeoLite2-City.mmdb)
//	MMDB_LISTEN_ADDR  listen address (default :8080)
//
// Endpoints:
//
//	GET /lookup/{ip}?path=city.names.en&path=location.latitude
//	GET /metadata
//	GET /healthz
package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/ipgrid/mmdb"
)

type server struct {
	reader     *mmdb.Reader
	instanceID string
}

func main() {
	log.SetPrefix("mmdbserve: ")

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("loading .env: %v", err)
	}
	dbPath := envOr("MMDB_PATH", "GeoLite2-City.mmdb")
	addr := envOr("MMDB_LISTEN_ADDR", ":8080")

	reader, err := mmdb.Open(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer reader.Close()

	s := &server{reader: reader, instanceID: uuid.NewString()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metadata", s.handleMetadata)
	r.Get("/lookup/{ip}", s.handleLookup)

	log.Printf("instance %s serving %s (%s) on %s",
		s.instanceID, dbPath, reader.Metadata.DatabaseType, addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal(err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"instance": s.instanceID,
	})
}

func (s *server) handleMetadata(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.reader.Metadata)
}

type lookupResponse struct {
	IP      string         `json:"ip"`
	Network string         `json:"network,omitempty"`
	Found   bool           `json:"found"`
	Record  any            `json:"record,omitempty"`
	Paths   map[string]any `json:"paths,omitempty"`
}

func (s *server) handleLookup(w http.ResponseWriter, r *http.Request) {
	ip, err := netip.ParseAddr(chi.URLParam(r, "ip"))
	if err != nil {
		http.Error(w, "invalid IP address", http.StatusBadRequest)
		return
	}

	result := s.reader.Lookup(ip)
	if err := result.Err(); err != nil {
		var versionErr mmdb.InvalidIPVersionError
		if errors.As(err, &versionErr) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := lookupResponse{IP: ip.String(), Found: result.Found()}
	if result.Prefix().IsValid() {
		resp.Network = result.Prefix().String()
	}

	paths := r.URL.Query()["path"]
	switch {
	case !result.Found():
	case len(paths) > 0:
		values, err := result.DecodePaths(paths...)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp.Paths = make(map[string]any, len(values))
		for path, value := range values {
			resp.Paths[path] = value.Native()
		}
	default:
		record, err := result.Decode()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp.Record = record.Native()
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encoding response: %v", err)
	}
}
