package installer

import (
	"fmt"
	"time"

	"app-bootstrap/core/storage"
)

// OpenIndex builds the index selected by cfg.Index. The returned close
// function is never nil.
func OpenIndex(cfg Config, storageCfg storage.Config) (Index, func(), error) {
	noop := func() {}
	switch cfg.Index {
	case IndexHTTP:
		if cfg.IndexURL == "" {
			return nil, noop, fmt.Errorf("install.index_url is required for the http index")
		}
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		idx := NewHTTPIndex(cfg.IndexURL, timeout)
		return idx, func() { _ = idx.Close() }, nil
	case IndexStorage:
		client, err := storage.NewClient(storageCfg)
		if err != nil {
			return nil, noop, err
		}
		return NewStorageIndex(client, storageCfg.Bucket, storageCfg.Prefix), noop, nil
	case IndexNone, "":
		return NoIndex{}, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown package index %q", cfg.Index)
	}
}
