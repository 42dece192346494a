package graphstore

import (
	"path/filepath"
)

// Engine creates the storages of a Store.
type Engine interface {
	Nodes() (KeyValueStore[string, Node], error)
	Edges() (KeyValueStore[string, Edge], error)
}

// MemoryEngine stores nodes and edges in memory.
type MemoryEngine struct {
	NodeStorage MemoryStorage[string, Node]
	EdgeStorage MemoryStorage[string, Edge]
}

func (me *MemoryEngine) Nodes() (KeyValueStore[string, Node], error) {
	if me.NodeStorage == nil {
		me.NodeStorage = make(MemoryStorage[string, Node])
	}
	return &me.NodeStorage, nil
}

func (me *MemoryEngine) Edges() (KeyValueStore[string, Edge], error) {
	if me.EdgeStorage == nil {
		me.EdgeStorage = make(MemoryStorage[string, Edge])
	}
	return &me.EdgeStorage, nil
}

// DiskEngine persistently stores nodes and edges in leveldb databases below Path.
type DiskEngine struct {
	Path string

	// Wipe deletes any existing data when the store is opened.
	Wipe bool
}

func (de DiskEngine) Nodes() (KeyValueStore[string, Node], error) {
	return NewDiskStorage[Node](filepath.Join(de.Path, "nodes.leveldb"), de.Wipe)
}

func (de DiskEngine) Edges() (KeyValueStore[string, Edge], error) {
	return NewDiskStorage[Edge](filepath.Join(de.Path, "edges.leveldb"), de.Wipe)
}
