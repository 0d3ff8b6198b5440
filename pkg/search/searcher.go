package search

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-go-golems/rehearsal/pkg/replytree"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultCacheSize = 16

type cachedIndex struct {
	modTime time.Time
	size    int64
	index   *Index
}

// Searcher is the path based search entry point. Indexes are cached per
// file and rebuilt whenever the file's modification time or size changes,
// so results always reflect what is on disk.
type Searcher struct {
	embedder replytree.Embedder
	cache    *lru.Cache[string, *cachedIndex]
}

func NewSearcher(embedder replytree.Embedder, cacheSize int) (*Searcher, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *cachedIndex](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Searcher{
		embedder: embedder,
		cache:    cache,
	}, nil
}

// Index returns the index for the tree stored at path, loading it if the
// cached copy is missing or stale.
func (s *Searcher) Index(path string) (*Index, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(key)
	if err != nil {
		return nil, err
	}

	if c, ok := s.cache.Get(key); ok && c.modTime.Equal(info.ModTime()) && c.size == info.Size() {
		return c.index, nil
	}

	root, err := replytree.LoadFromFile(key)
	if err != nil {
		return nil, err
	}
	ix, err := Build(root)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, &cachedIndex{
		modTime: info.ModTime(),
		size:    info.Size(),
		index:   ix,
	})
	log.Debug().Str("path", key).Int("replies", ix.Len()).Msg("Indexed reply tree")
	return ix, nil
}

func (s *Searcher) Search(
	ctx context.Context,
	path string,
	text string,
	k int,
	filter RoleFilter,
) ([]*replytree.Reply, error) {
	ix, err := s.Index(path)
	if err != nil {
		return nil, errors.Wrap(err, "loading search index")
	}
	return ix.Query(ctx, s.embedder, text, k, filter)
}

func (s *Searcher) SearchHits(
	ctx context.Context,
	path string,
	text string,
	k int,
	filter RoleFilter,
) ([]Hit, error) {
	ix, err := s.Index(path)
	if err != nil {
		return nil, errors.Wrap(err, "loading search index")
	}
	return ix.QueryHits(ctx, s.embedder, text, k, filter)
}

// Purge drops every cached index.
func (s *Searcher) Purge() {
	s.cache.Purge()
}
