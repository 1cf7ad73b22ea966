package handlers

import (
	"geoindex/internal/database"
	"geoindex/internal/indexer"
)

type Handlers struct {
	db         *database.Database
	indexer    *indexer.Indexer
	exportRoot string
}

// New wires the handlers. Export destinations are confined to exportRoot;
// an empty exportRoot disables move, copy and manifest exports.
func New(db *database.Database, idx *indexer.Indexer, exportRoot string) *Handlers {
	return &Handlers{
		db:         db,
		indexer:    idx,
		exportRoot: exportRoot,
	}
}
