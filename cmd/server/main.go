// Command server is the negotiation platform's demo binary: it wires the
// Engine to an HTTP/SSE facade. Grounded on cmd/api/main.go's bootstrap shape
// (godotenv load, http registration, startup log lines) with net/http
// replaced by gorilla/mux and fmt.Println replaced by zerolog, per
// houzhh15-mote's ambient logging stack.
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"negotiation-engine/pkg/api/negotiation"
	"negotiation-engine/pkg/core/engine"
	"negotiation-engine/pkg/core/llm"
	"negotiation-engine/pkg/core/oracle"
	"negotiation-engine/pkg/core/store"
	"negotiation-engine/pkg/core/types"
)

// profileStore satisfies both registry.ProfileRepository and
// engine.CandidateDirectory, whichever backend is in use.
type profileStore interface {
	Get(userID string) (types.AgentProfile, bool, error)
	ListProfiles(ctx context.Context) ([]types.AgentProfile, error)
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("no .env file found, relying on process environment")
	}

	oracleCfg := oracle.LoadConfig("config/oracle.yaml")

	var backend oracle.Service
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		logger.Info().Str("provider", "gemini").Msg("oracle backed by live LLM provider")
		backend = oracle.NewLLMService(map[string]llm.Provider{
			"gemini": &llm.GeminiProvider{Model: "gemini-2.0-flash-exp"},
		}, "gemini")
	} else {
		logger.Warn().Msg("GEMINI_API_KEY not set, oracle falling back to deterministic mock backend")
		backend = oracle.NewMockService()
	}

	var profiles profileStore
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		if err := store.InitDB(context.Background()); err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to profile database")
		}
		profiles = store.NewProfileRepo(store.GetPool())
		logger.Info().Msg("candidate profiles backed by Postgres")
	} else {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory seeded candidate directory")
		profiles = demoSeedProfiles()
	}

	cfg := engine.DefaultConfig()
	eng := engine.New(cfg, oracleCfg, backend, profiles, profiles)

	router := mux.NewRouter()
	negotiation.NewHandler(eng, logger).Register(router)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	logger.Info().Str("addr", addr).Msg("negotiation server listening")
	logger.Info().Msg("POST /api/demands")
	logger.Info().Msg("GET  /api/channels/{id}")
	logger.Info().Msg("GET  /api/events/recent")
	logger.Info().Msg("GET  /api/events/stream?pattern=negotiation.*")

	if err := http.ListenAndServe(addr, router); err != nil {
		logger.Fatal().Err(err).Msg("server failed to start")
	}
}

func demoSeedProfiles() *store.MemoryProfileRepo {
	return store.NewMemoryProfileRepo(
		types.AgentProfile{ID: "alice", DisplayName: "Alice", CapabilityTags: []string{"general", "logistics"}, Availability: "weekday evenings"},
		types.AgentProfile{ID: "bob", DisplayName: "Bob", CapabilityTags: []string{"general", "catering"}, Availability: "weekends"},
		types.AgentProfile{ID: "carol", DisplayName: "Carol", CapabilityTags: []string{"general", "photography"}, Availability: "flexible"},
	)
}
