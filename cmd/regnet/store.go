package main

import (
	"context"
	"errors"

	"github.com/protrend/regnet/internal/bolt"
	"github.com/protrend/regnet/internal/catalog"
	"github.com/protrend/regnet/internal/config"
	"github.com/protrend/regnet/internal/graphstore"
	"github.com/protrend/regnet/internal/schema"
)

// openedStore is a store opened according to the configuration
type openedStore struct {
	Store catalog.Store
	Graph *graphstore.Store // nil unless the store is embedded

	close func(ctx context.Context) error
}

func (o *openedStore) Close(ctx context.Context) error {
	return o.close(ctx)
}

func openStore(ctx context.Context, cfg config.Config, s *schema.Schema) (*openedStore, error) {
	var engine graphstore.Engine

	switch cfg.Store {
	case config.Memory:
		engine = &graphstore.MemoryEngine{}
	case config.LevelDB:
		st.Log("opening leveldb store", "path", cfg.LevelDB.Path, "wipe", cfg.LevelDB.Wipe)
		engine = graphstore.DiskEngine{Path: cfg.LevelDB.Path, Wipe: cfg.LevelDB.Wipe}
	case config.Bolt:
		st.Log("connecting to bolt server", "uri", cfg.Bolt.URI, "user", cfg.Bolt.User)
		driver, err := bolt.Dial(ctx, cfg.BoltConfig())
		if err != nil {
			return nil, err
		}
		return &openedStore{
			Store: &bolt.Store{Schema: s, Executor: driver, Stats: st},
			close: driver.Close,
		}, nil
	default:
		return nil, errors.New("unknown store " + cfg.Store)
	}

	graph, err := graphstore.Open(s, engine, st)
	if err != nil {
		return nil, err
	}
	if size, err := graph.Size(); err == nil {
		st.Log("opened store", "size", size)
	}
	return &openedStore{
		Store: graph,
		Graph: graph,
		close: func(context.Context) error { return graph.Close() },
	}, nil
}
