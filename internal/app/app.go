// Package app provides application initialization and dependency wiring.
//
// App is the container that holds every long-lived component: the database
// pool, the Genkit embedder, the document store, and the kb indexer and
// retriever built on top of them.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kabinet-ai/kabinet/internal/config"
	"github.com/kabinet-ai/kabinet/internal/kb"
	"github.com/kabinet-ai/kabinet/internal/remote"
	"github.com/kabinet-ai/kabinet/internal/store"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Source    remote.Source
	Store     *store.Store
	Indexer   *kb.Indexer
	Retriever *kb.Retriever
}

// Close gracefully releases all resources.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.DBPool != nil {
		a.DBPool.Close()
	}
	return nil
}
