// Package stub is a fake upstream combat-analysis server for local
// development and load testing. It serves deterministic datasets for any
// event id, shaped like the real analysis services.
package stub

import (
	"encoding/json"
	"hash/fnv"
	"math/rand"
	"net/http"

	"github.com/tovren/raidledger/internal/domain/model"
	"github.com/tovren/raidledger/internal/domain/rules"
)

// Server generates and serves fake event data.
type Server struct {
	players []fakePlayer
}

type fakePlayer struct {
	name    string
	discord string
	class   string
	role    string
}

var names = []string{
	"Thorgar", "Mellandru", "Sylvaen", "Krugash", "Elowen",
	"Darnas", "Vexia", "Bromli", "Ithrandil", "Morwenna",
	"Stonefist", "Lialynn", "Gorehowl", "Faelar", "Drusilda",
	"Karrok", "Neriwyn", "Ashgar", "Tindomiel", "Volkran",
	"Seraphel", "Muldoon", "Yavanna", "Rothgar", "Celebrin",
}

var classes = []string{"warrior", "rogue", "mage", "warlock", "priest", "druid", "hunter", "shaman"}

// NewServer creates a stub with a fixed 25-player roster.
func NewServer() *Server {
	s := &Server{}
	for i, name := range names {
		role := "damage"
		switch {
		case i < 3:
			role = "tank"
		case i < 8:
			role = "healer"
		}
		s.players = append(s.players, fakePlayer{
			name:    name,
			discord: "d" + name,
			class:   classes[i%len(classes)],
			role:    role,
		})
	}
	return s
}

// Register attaches the upstream endpoint routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /events/{id}/categories/{key}", s.handleCategory)
	mux.HandleFunc("GET /events/{id}/roster", s.handleRoster)
	mux.HandleFunc("GET /events/{id}/primary-roles", s.handleRoles)
	mux.HandleFunc("GET /events/{id}/goldpot", s.handleGoldPot)
	mux.HandleFunc("GET /events/{id}/raidleader-cut", s.handleRaidleaderCut)
}

// rng returns a generator seeded from the event id and category so the
// same event always produces the same data.
func rng(eventID, key string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(eventID))
	_, _ = h.Write([]byte(key))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	key := r.PathValue("key")

	if _, ok := rules.Lookup(key); !ok {
		writeJSON(w, map[string]any{"success": false})
		return
	}

	rnd := rng(eventID, key)
	rows := make([]model.Row, 0, len(s.players))
	for _, p := range s.players {
		// Roughly half the roster shows up in any given analysis.
		if rnd.Intn(2) == 0 {
			continue
		}
		rows = append(rows, model.Row{
			Name:      p.name,
			DiscordID: p.discord,
			Class:     p.class,
			Role:      p.role,
			Value:     float64(rnd.Intn(500000)),
			Secondary: rnd.Float64() * 100,
			Counts: map[string]float64{
				"void_zone": float64(rnd.Intn(4)),
				"cleave":    float64(rnd.Intn(3)),
			},
		})
	}
	writeJSON(w, map[string]any{"success": true, "data": rows})
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	rows := make([]model.Row, 0, len(s.players))
	for _, p := range s.players {
		rows = append(rows, model.Row{
			Name:      p.name,
			DiscordID: p.discord,
			Class:     p.class,
			Role:      p.role,
		})
	}
	writeJSON(w, map[string]any{"success": true, "data": rows})
}

func (s *Server) handleRoles(w http.ResponseWriter, r *http.Request) {
	roles := make(map[string]string, len(s.players))
	for _, p := range s.players {
		roles[p.name] = p.role
	}
	writeJSON(w, map[string]any{"success": true, "data": roles})
}

func (s *Server) handleGoldPot(w http.ResponseWriter, r *http.Request) {
	rnd := rng(r.PathValue("id"), "goldpot")
	writeJSON(w, map[string]any{"success": true, "total_gold": int64(5000 + rnd.Intn(20000))})
}

func (s *Server) handleRaidleaderCut(w http.ResponseWriter, r *http.Request) {
	rnd := rng(r.PathValue("id"), "raidleader")
	writeJSON(w, map[string]any{"success": true, "pct": rnd.Intn(11)})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}
