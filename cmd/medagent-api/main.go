package main

import (
	"context"
	"net/http"
	"os"

	httpadapter "medagent/internal/adapters/http"
	"medagent/internal/adapters/knowledge"
	"medagent/internal/adapters/llm"
	memstore "medagent/internal/adapters/storage/memory"
	sqlitestore "medagent/internal/adapters/storage/sqlite"
	"medagent/internal/app/consult"
	"medagent/internal/app/governance"
	"medagent/internal/config"
	"medagent/internal/domain"
	"medagent/internal/observability"
)

func main() {
	ctx := context.Background()
	log := observability.ForComponent("main")

	cfg, err := config.Load()
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	cipher, err := governance.NewFieldCipher(cfg.EncryptionKey)
	if err != nil {
		log.Error("encryption key error", "error", err)
		os.Exit(1)
	}

	// Storage: SQLite or memory. One store implements every port.
	var stores governance.Stores
	switch cfg.StorageBackend {
	case "memory":
		log.Info("using in-memory storage")
		s := memstore.NewStore()
		stores = governance.Stores{
			Cases: s, Interactions: s, Memory: s, Audit: s,
			SystemLog: s, Reports: s, Profiles: s, Medications: s,
		}
	default:
		log.Info("using sqlite storage", "path", cfg.SQLitePath)
		s, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			log.Error("sqlite error", "error", err)
			os.Exit(1)
		}
		defer s.Close()
		stores = governance.Stores{
			Cases: s, Interactions: s, Memory: s, Audit: s,
			SystemLog: s, Reports: s, Profiles: s, Medications: s,
		}
	}

	coord := governance.NewCoordinator(cipher, stores)

	var inference domain.InferenceClient
	if cfg.UseMockLLM {
		log.Info("using mock inference client")
		inference = llm.NewMockLLM()
	} else {
		log.Info("using Vertex AI inference client", "model", cfg.ModelName)
		inference, err = llm.NewGenAIClient(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.ModelName)
		if err != nil {
			log.Error("inference client error", "error", err)
			os.Exit(1)
		}
	}

	retriever := knowledge.NewRetriever(knowledge.DefaultCorpus())

	svc, err := consult.NewService(consult.Options{
		LLM:              inference,
		Knowledge:        retriever,
		Coordinator:      coord,
		InferenceTimeout: cfg.InferenceTimeout,
		MaxStageHops:     cfg.MaxStageHops,
		RatePerMinute:    cfg.RatePerMinute,
	})
	if err != nil {
		log.Error("pipeline wiring error", "error", err)
		os.Exit(1)
	}

	handler := httpadapter.NewServer(svc, coord)

	addr := ":" + cfg.Port
	log.Info("medagent API listening", "addr", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
