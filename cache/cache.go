// Package cache implements the content-addressed, engine-version-scoped
// compiled-module store described by the cache store component: an
// on-disk cache fronted by a bounded in-process hot cache, self-healing on
// deserialization failure.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/tetratelabs/wazero"

	"github.com/probechain/tallyvm/internal/seahash"
)

// Engine version components. Concatenated, these form the path segment
// that invalidates stale cache artifacts across upgrades: a change to any
// one of the compiler, the gas-metering walker, or the hand-rolled WASI
// subset must change this string.
const (
	wazeroVersion   = "wazero-v1.7.2"
	meteringVersion = "opcodewalk-v1"
	wasiVersion     = "wasi-subset-v1"
)

// EngineVersion returns the current engine version string used as the
// cache directory's leaf path segment.
func EngineVersion() string {
	return wazeroVersion + "_" + meteringVersion + "_" + wasiVersion
}

const hotCacheSize = 128

// Store is the persistent compiled-module cache for one sedad_home. It
// wraps wazero's own directory-scoped compilation cache (wazero exposes no
// public Serialize/Deserialize pair on CompiledModule, so its directory
// cache is the supported persistence seam) with a sibling per-id manifest
// file implementing the "file exists ⇒ valid entry" check, and a bounded
// in-process LRU in front of both so that repeated invocations inside one
// process skip even the manifest stat.
type Store struct {
	dir          string
	engineVer    string
	compCache    wazero.CompilationCache
	hot          *lru.Cache
	manifestLock sync.Mutex
}

// NewStore creates or opens the cache rooted at
// <sedadHome>/sedavm/wasm_cache/<engine_version>/.
func NewStore(sedadHome string) (*Store, error) {
	ver := EngineVersion()
	dir := filepath.Join(sedadHome, "sedavm", "wasm_cache", ver)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create cache dir: %w", err)
	}
	cc, err := wazero.NewCompilationCacheWithDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cache: open compilation cache: %w", err)
	}
	hot, err := lru.New(hotCacheSize)
	if err != nil {
		return nil, fmt.Errorf("cache: create hot cache: %w", err)
	}
	return &Store{dir: dir, engineVer: ver, compCache: cc, hot: hot}, nil
}

// Dir returns the cache directory for the current engine version, exposed
// for cache diagnostics tooling.
func (s *Store) Dir() string { return s.dir }

// EngineVersion returns the engine version this store is scoped to.
func (s *Store) EngineVersion() string { return s.engineVer }

// CompilationCache returns the wazero.CompilationCache to attach to every
// wazero.RuntimeConfig used against this store, so compiles persist here.
func (s *Store) CompilationCache() wazero.CompilationCache { return s.compCache }

// ContentID computes the cache key for wasmBytes: a 64-bit SeaHash
// rendered as a decimal string.
func ContentID(wasmBytes []byte) string {
	return strconv.FormatUint(seahash.Sum64(wasmBytes), 10)
}

func (s *Store) manifestPath(id string) string {
	return filepath.Join(s.dir, id+".manifest")
}

// Load attempts to obtain a compiled module for id without paying
// recompilation cost. It returns (module, true, nil) on a cache hit, or
// (nil, false, nil) on a clean miss (no manifest present). A deserialization
// failure self-heals: the manifest is deleted and a miss is reported rather
// than an error, so the caller falls through to Store and recompiles.
// wasmBytes must be the same bytes id was derived from — wazero's directory
// cache is keyed internally from the compiled bytes, not from our id alone,
// so a real compile call is unavoidable even on a hit; the point of the
// manifest + hot cache is to avoid the stat/compile round trip entirely
// when possible.
func (s *Store) Load(ctx context.Context, rt wazero.Runtime, id string, wasmBytes []byte) (wazero.CompiledModule, bool, error) {
	if v, ok := s.hot.Get(id); ok {
		return v.(wazero.CompiledModule), true, nil
	}

	if _, err := os.Stat(s.manifestPath(id)); err != nil {
		return nil, false, nil
	}

	mod, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		// Self-heal: the manifest claimed a valid entry but compilation
		// failed (e.g. a corrupted or stale directory-cache artifact).
		_ = os.Remove(s.manifestPath(id))
		return nil, false, nil
	}
	s.hot.Add(id, mod)
	return mod, true, nil
}

// Store compiles wasmBytes (wazero transparently persists the compiled
// artifact into this store's directory cache as a side effect of
// CompileModule), writes the sentinel manifest file marking id as present,
// and populates the hot cache.
func (s *Store) Store(ctx context.Context, rt wazero.Runtime, id string, wasmBytes []byte) (wazero.CompiledModule, error) {
	mod, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("cache: compile: %w", err)
	}

	s.manifestLock.Lock()
	f, err := os.OpenFile(s.manifestPath(id), os.O_CREATE|os.O_WRONLY, 0o644)
	if err == nil {
		_ = f.Close()
	}
	s.manifestLock.Unlock()

	s.hot.Add(id, mod)
	return mod, nil
}

// Close releases the underlying compilation cache's resources.
func (s *Store) Close(ctx context.Context) error {
	return s.compCache.Close(ctx)
}

// Stat describes one on-disk cache entry, used by cache diagnostics.
type Stat struct {
	ID      string
	Path    string
	Size    int64
	ModTime int64
}

// ListEntries walks the store's directory and returns one Stat per manifest
// file found, for the cache-info CLI command.
func (s *Store) ListEntries() ([]Stat, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("cache: read dir: %w", err)
	}
	var stats []Stat
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		const suffix = ".manifest"
		if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stats = append(stats, Stat{
			ID:      name[:len(name)-len(suffix)],
			Path:    filepath.Join(s.dir, name),
			Size:    info.Size(),
			ModTime: info.ModTime().Unix(),
		})
	}
	return stats, nil
}
