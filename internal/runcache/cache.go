package runcache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ashare-lab/screener/internal/contracts"
	"github.com/ashare-lab/screener/pkg/logger"
	"github.com/ashare-lab/screener/pkg/redis"
)

// Entry is the single combined run record: the finished report plus the
// full scored table the report was selected from. One key, one record;
// a cache hit never mixes artifacts from different runs.
type Entry struct {
	Key       string                `json:"key"`
	CreatedAt time.Time             `json:"created_at"`
	Report    *contracts.Report     `json:"report"`
	Scored    []contracts.ScoredRow `json:"scored"`
}

// HashBytes returns the md5 hex digest of raw input bytes.
func HashBytes(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Key derives the run cache key from everything that determines the
// output: run date, top-N, provider identity and the content hashes of
// the two input files. Any input change yields a new key.
func Key(date string, topN int, provider, signalsHash, themeMapHash string) string {
	payload := date + strconv.Itoa(topN) + provider + signalsHash + themeMapHash
	return HashBytes([]byte(payload))
}

// Store abstracts the cache backend.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Put(ctx context.Context, key string, entry *Entry) error
}

// NopStore never hits and never stores.
type NopStore struct{}

func (NopStore) Get(context.Context, string) (*Entry, bool, error) { return nil, false, nil }
func (NopStore) Put(context.Context, string, *Entry) error        { return nil }

// FileStore keeps one JSON file per key under a cache directory.
type FileStore struct {
	dir    string
	logger *logger.Logger
}

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(dir string, log *logger.Logger) *FileStore {
	return &FileStore{dir: dir, logger: log}
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get loads the entry for key. A missing or unreadable record is a miss,
// not an error; a corrupt record is logged and treated as a miss.
func (s *FileStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, false, nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		if s.logger != nil {
			s.logger.Warnf("discarding corrupt cache record %s: %v", key, err)
		}
		return nil, false, nil
	}
	return &entry, true, nil
}

// Put writes the entry atomically: marshal to a temp file in the same
// directory, then rename over the final path.
func (s *FileStore) Put(_ context.Context, key string, entry *Entry) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cache temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cache temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish cache record: %w", err)
	}
	return nil
}

// RedisStore keeps entries in redis with a TTL.
type RedisStore struct {
	cache *redis.Cache
	ttl   time.Duration
}

// NewRedisStore creates a redis-backed store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		cache: redis.NewCache(client, "screener:run"),
		ttl:   ttl,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	var entry Entry
	found, err := s.cache.Get(ctx, key, &entry)
	if err != nil || !found {
		return nil, false, err
	}
	return &entry, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, entry *Entry) error {
	return s.cache.Set(ctx, key, entry, s.ttl)
}
