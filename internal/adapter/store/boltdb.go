package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"examprep/internal/domain"
)

var (
	bucketCollections = []byte("collections")
	bucketChunks      = []byte("chunks")
	bucketSources     = []byte("sources")
	bucketSchema      = []byte("schema")
)

// Options configures a store handle.
type Options struct {
	// Timeout bounds how long Open waits for the file lock held by another
	// process. Zero waits forever.
	Timeout time.Duration

	// Metric is the distance function new collections are bound to. Existing
	// collections must match it.
	Metric domain.Metric

	// Model is recorded in a collection's schema on first write.
	Model string
}

// DB is an open bbolt file holding any number of named collections.
type DB struct {
	bolt *bbolt.DB
	path string
	opts Options

	mu          sync.Mutex
	closed      bool
	collections map[string]*Collection
}

// Open opens or creates the store file at path.
func Open(path string, opts Options) (*DB, error) {
	if opts.Metric == "" {
		opts.Metric = domain.MetricCosine
	}
	if _, err := domain.ParseMetric(string(opts.Metric)); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, &domain.StoreError{Op: "open", Err: fmt.Errorf("%s: %w", path, err)}
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCollections)
		return err
	})
	if err != nil {
		db.Close()
		return nil, &domain.StoreError{Op: "open", Err: err}
	}

	return &DB{
		bolt:        db,
		path:        path,
		opts:        opts,
		collections: make(map[string]*Collection),
	}, nil
}

// Path returns the file backing the store.
func (d *DB) Path() string {
	return d.path
}

// Collection returns the named collection, creating it on first use. The
// same handle is returned for repeated calls.
func (d *DB) Collection(name string) (*Collection, error) {
	if name == "" {
		return nil, domain.Invalidf("empty collection name")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, &domain.StoreError{Op: "collection", Err: domain.ErrClosed}
	}
	if c, ok := d.collections[name]; ok {
		return c, nil
	}

	c, err := openCollection(d, name)
	if err != nil {
		return nil, err
	}
	d.collections[name] = c
	return c, nil
}

// Collections lists the names of all collections in the file.
func (d *DB) Collections() ([]string, error) {
	if d.isClosed() {
		return nil, &domain.StoreError{Op: "collections", Err: domain.ErrClosed}
	}

	var names []string
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketCollections)
		if root == nil {
			return nil
		}
		return root.ForEach(func(k, v []byte) error {
			if v == nil {
				names = append(names, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, &domain.StoreError{Op: "collections", Err: err}
	}

	sort.Strings(names)
	return names, nil
}

// Close releases the file. Further calls on the handle or its collections
// fail with ErrClosed.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.bolt.Close()
}

func (d *DB) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
