package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const diskCachePrefixRunes = 100

// DiskCacheEntry is the JSON document stored per cached text.
type DiskCacheEntry struct {
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	TextPrefix string    `json:"text_prefix"`
	Embedding  []float32 `json:"embedding"`
}

// DiskCacheProvider persists embeddings as one JSON file per text. Files live
// under <root>/<model>-<dims>/ and are named by sha256(model, dims, text), so
// two providers sharing a root never read each other's vectors. Least
// recently used files are evicted once maxEntries or maxSize is exceeded.
type DiskCacheProvider struct {
	provider   Provider
	model      EmbeddingModel
	root       string
	directory  string
	maxSize    int64 // in bytes
	maxEntries int
	mu         sync.Mutex
}

var _ Provider = &DiskCacheProvider{}

type Option func(*DiskCacheProvider)

// WithDirectory sets the cache root. The per-model directory is created
// beneath it.
func WithDirectory(dir string) Option {
	return func(p *DiskCacheProvider) {
		if dir != "" {
			p.root = dir
		}
	}
}

func WithMaxSize(size int64) Option {
	return func(p *DiskCacheProvider) {
		p.maxSize = size
	}
}

func WithMaxEntries(count int) Option {
	return func(p *DiskCacheProvider) {
		p.maxEntries = count
	}
}

// DefaultCacheRoot is ~/.rehearsal/cache/embeddings.
func DefaultCacheRoot() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(homeDir, ".rehearsal", "cache", "embeddings"), nil
}

// ModelDirectoryName is the directory segment for a model: its name with
// path separators and other unsafe characters replaced, then its dimensions.
func ModelDirectoryName(model EmbeddingModel) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		}
		return '_'
	}, model.Name)
	if name == "" {
		name = "unnamed"
	}
	return fmt.Sprintf("%s-%d", name, model.Dimensions)
}

func NewDiskCacheProvider(provider Provider, opts ...Option) (*DiskCacheProvider, error) {
	p := &DiskCacheProvider{
		provider:   provider,
		model:      provider.GetModel(),
		maxSize:    1 << 30, // 1GB
		maxEntries: 10000,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.root == "" {
		root, err := DefaultCacheRoot()
		if err != nil {
			return nil, err
		}
		p.root = root
	}
	p.directory = filepath.Join(p.root, ModelDirectoryName(p.model))
	if err := os.MkdirAll(p.directory, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create cache directory")
	}

	return p, nil
}

// Directory is where this provider's files are written.
func (p *DiskCacheProvider) Directory() string {
	return p.directory
}

func (p *DiskCacheProvider) keyPath(text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00", p.model.Name, p.model.Dimensions)
	h.Write([]byte(text))
	return filepath.Join(p.directory, hex.EncodeToString(h.Sum(nil)))
}

// textPrefix cuts on rune boundaries; most utterances are Japanese.
func textPrefix(text string) string {
	runes := []rune(text)
	if len(runes) > diskCachePrefixRunes {
		runes = runes[:diskCachePrefixRunes]
	}
	return string(runes)
}

// fits reports whether a vector has the length the model declares. A model
// declaring zero dimensions accepts any non-empty vector.
func (p *DiskCacheProvider) fits(embedding []float32) bool {
	if len(embedding) == 0 {
		return false
	}
	return p.model.Dimensions <= 0 || len(embedding) == p.model.Dimensions
}

func (p *DiskCacheProvider) load(text string) (*DiskCacheEntry, error) {
	path := p.keyPath(text)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read cache file")
	}

	entry := &DiskCacheEntry{}
	if err := json.Unmarshal(data, entry); err != nil ||
		entry.Model != p.model.Name ||
		entry.Dimensions != p.model.Dimensions ||
		!p.fits(entry.Embedding) {
		log.Debug().
			Str("path", path).
			Str("model", p.model.Name).
			Int("dimensions", p.model.Dimensions).
			Msg("Dropping unusable embedding cache file")
		_ = os.Remove(path)
		return nil, nil
	}

	// mtime doubles as the access time for eviction
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		return nil, errors.Wrap(err, "failed to update file times")
	}
	return entry, nil
}

func (p *DiskCacheProvider) store(text string, embedding []float32) error {
	data, err := json.Marshal(&DiskCacheEntry{
		Model:      p.model.Name,
		Dimensions: p.model.Dimensions,
		TextPrefix: textPrefix(text),
		Embedding:  embedding,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal entry")
	}
	if err := os.WriteFile(p.keyPath(text), data, 0644); err != nil {
		return errors.Wrap(err, "failed to write cache file")
	}
	return p.evict()
}

func (p *DiskCacheProvider) evict() error {
	dirEntries, err := os.ReadDir(p.directory)
	if err != nil {
		return errors.Wrap(err, "failed to read cache directory")
	}

	type cached struct {
		path string
		size int64
		used time.Time
	}
	files := make([]cached, 0, len(dirEntries))
	var total int64
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		files = append(files, cached{
			path: filepath.Join(p.directory, de.Name()),
			size: info.Size(),
			used: info.ModTime(),
		})
		total += info.Size()
	}
	sort.Slice(files, func(i, j int) bool { return files[i].used.Before(files[j].used) })

	remaining := len(files)
	for _, f := range files {
		if remaining <= p.maxEntries && total <= p.maxSize {
			break
		}
		if err := os.Remove(f.path); err != nil {
			return errors.Wrap(err, "failed to remove cache file")
		}
		remaining--
		total -= f.size
	}
	return nil
}

func (p *DiskCacheProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	entry, err := p.load(text)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return entry.Embedding, nil
	}

	embedding, err := p.provider.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	if !p.fits(embedding) {
		log.Warn().
			Str("model", p.model.Name).
			Int("expected", p.model.Dimensions).
			Int("got", len(embedding)).
			Msg("Not caching embedding with unexpected dimensions")
		return embedding, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.store(text, embedding); err != nil {
		return nil, err
	}
	return embedding, nil
}

// GetCachedEntry returns the stored entry for text, or nil when there is none.
func (p *DiskCacheProvider) GetCachedEntry(text string) (*DiskCacheEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load(text)
}

func (p *DiskCacheProvider) GetModel() EmbeddingModel {
	return p.model
}

// ClearCache removes this model's files. Other models under the same root
// are left alone.
func (p *DiskCacheProvider) ClearCache() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.RemoveAll(p.directory); err != nil {
		return errors.Wrap(err, "failed to clear cache")
	}
	return os.MkdirAll(p.directory, 0755)
}
