package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTTL is how long a cached generation stays retrievable.
	DefaultTTL = 24 * time.Hour

	// SimilarityThreshold is the minimum sequence-alignment ratio (0-1)
	// for a fuzzy cache hit.
	SimilarityThreshold = 0.85

	// promptListKey holds the ordered list of (prompt, key) pairs used for
	// the fuzzy scan.
	promptListKey = "global_prompt_list"
)

// Source tags where a response came from.
type Source string

const (
	SourceCache Source = "Cache"
	SourceFresh Source = "Fresh"
)

// ErrNotFound is returned by a Backend when a key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// Backend is the key/value store behind the cache. Redis in production, an
// in-memory map in tests. Backend failures other than ErrNotFound propagate
// to the caller: the cache does not degrade silently.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// trackedPrompt is one entry of the fuzzy-scan list.
type trackedPrompt struct {
	Prompt string `json:"prompt"`
	Key    string `json:"key"`
}

// Cache maps a fully rendered prompt to a previously generated response,
// retrievable by exact hash or by similarity against any tracked prompt.
// Exact lookup is O(1); the fuzzy path is a linear scan over every distinct
// prompt seen inside the TTL window.
type Cache struct {
	backend   Backend
	ttl       time.Duration
	threshold float64
}

// New creates a cache over the given backend. A zero ttl means DefaultTTL.
func New(backend Backend, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		backend:   backend,
		ttl:       ttl,
		threshold: SimilarityThreshold,
	}
}

// makeKey returns the SHA-256 hex digest of a prompt.
func makeKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached response for the prompt, trying the exact hash
// first and then a similarity scan. ErrNotFound means a clean miss.
func (c *Cache) Lookup(ctx context.Context, prompt string) (string, error) {
	key := makeKey(prompt)

	value, err := c.backend.Get(ctx, key)
	if err == nil {
		log.Debug().Str("key", key).Msg("cache exact hit")
		return value, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("cache lookup failed: %w", err)
	}

	similarKey, err := c.findSimilarPrompt(ctx, prompt)
	if err != nil {
		return "", err
	}
	if similarKey != "" {
		value, err := c.backend.Get(ctx, similarKey)
		if err == nil {
			log.Debug().Str("key", similarKey).Msg("cache similar hit")
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("cache lookup failed: %w", err)
		}
	}

	return "", ErrNotFound
}

// Store writes the response under the prompt's hash and tracks the prompt
// for future similarity scans. Re-tracking an already known hash is a no-op.
func (c *Cache) Store(ctx context.Context, prompt, response string) error {
	key := makeKey(prompt)
	if err := c.backend.Set(ctx, key, response, c.ttl); err != nil {
		return fmt.Errorf("cache store failed: %w", err)
	}

	list, err := c.loadPromptList(ctx)
	if err != nil {
		return err
	}
	for _, entry := range list {
		if entry.Key == key {
			return nil
		}
	}
	list = append(list, trackedPrompt{Prompt: prompt, Key: key})

	data, err := sonic.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to marshal prompt list: %w", err)
	}
	if err := c.backend.Set(ctx, promptListKey, string(data), c.ttl); err != nil {
		return fmt.Errorf("cache store failed: %w", err)
	}
	return nil
}

// CachedCall returns the cached response for the prompt when one exists,
// otherwise invokes the generator and stores its result. It always reports
// the source and the elapsed wall time.
func (c *Cache) CachedCall(ctx context.Context, prompt string, generate func(ctx context.Context, prompt string) (string, error)) (string, Source, time.Duration, error) {
	start := time.Now()

	cached, err := c.Lookup(ctx, prompt)
	if err == nil {
		return cached, SourceCache, time.Since(start), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", "", time.Since(start), err
	}

	response, err := generate(ctx, prompt)
	if err != nil {
		return "", "", time.Since(start), err
	}
	if err := c.Store(ctx, prompt, response); err != nil {
		return "", "", time.Since(start), err
	}
	return response, SourceFresh, time.Since(start), nil
}

// findSimilarPrompt scans the tracked prompts and returns the key of the
// first one whose similarity to the prompt reaches the threshold.
func (c *Cache) findSimilarPrompt(ctx context.Context, prompt string) (string, error) {
	list, err := c.loadPromptList(ctx)
	if err != nil {
		return "", err
	}

	for _, entry := range list {
		similarity := float64(fuzzy.Ratio(prompt, entry.Prompt)) / 100
		if similarity >= c.threshold {
			log.Debug().Float64("similarity", similarity).Str("key", entry.Key).Msg("found similar prompt")
			return entry.Key, nil
		}
	}
	return "", nil
}

func (c *Cache) loadPromptList(ctx context.Context) ([]trackedPrompt, error) {
	data, err := c.backend.Get(ctx, promptListKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt list: %w", err)
	}

	var list []trackedPrompt
	if err := sonic.Unmarshal([]byte(data), &list); err != nil {
		return nil, fmt.Errorf("failed to parse prompt list: %w", err)
	}
	return list, nil
}
