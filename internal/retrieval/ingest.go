package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
)

const (
	chunkSize    = 400
	chunkOverlap = 50

	fetchTimeout = 15 * time.Second
)

// SalesItem is one curated sales-content entry, ingested under its title as
// category.
type SalesItem struct {
	Title   string `yaml:"title"`
	Content string `yaml:"content"`
}

// Ingestor scrapes pages, chunks their text, and writes the chunks into the
// vector store. Content hashes persist across restarts so unchanged pages
// are not re-embedded.
type Ingestor struct {
	store  *Store
	client *http.Client

	mu       sync.Mutex
	hashes   map[string]string
	hashPath string
}

// NewIngestor creates an ingestor persisting content hashes at hashPath.
// An unreadable or missing hash file starts empty.
func NewIngestor(store *Store, hashPath string) *Ingestor {
	ing := &Ingestor{
		store:    store,
		client:   &http.Client{Timeout: fetchTimeout},
		hashes:   make(map[string]string),
		hashPath: hashPath,
	}
	ing.loadHashes()
	return ing
}

// IngestWebsite scrapes each URL, chunks it, and replaces its chunks in the
// website collection. A failing URL is logged and skipped; the rest proceed.
func (ing *Ingestor) IngestWebsite(ctx context.Context, urls []string) error {
	for _, url := range urls {
		content, err := ing.fetchPage(ctx, url)
		if err != nil {
			log.Error().Err(err).Str("url", url).Msg("failed to scrape page")
			continue
		}
		if content == "" {
			log.Warn().Str("url", url).Msg("page yielded no content, skipping")
			continue
		}
		if err := ing.store.Replace(ctx, CollectionWebsite, url, "Website", chunkWords(content)); err != nil {
			return err
		}
		ing.setHash(url, contentHash(content))
	}
	return ing.saveHashes()
}

// IngestSales ingests curated sales content, one source per item title.
// Items whose content hash is unchanged since the last run are skipped.
func (ing *Ingestor) IngestSales(ctx context.Context, items []SalesItem) error {
	for _, item := range items {
		key := "sales:" + item.Title
		hash := contentHash(item.Content)
		if hash == ing.getHash(key) {
			continue
		}
		if err := ing.store.Replace(ctx, CollectionSales, item.Title, item.Title, chunkWords(item.Content)); err != nil {
			return err
		}
		ing.setHash(key, hash)
	}
	return ing.saveHashes()
}

// RefreshChanged re-scrapes every URL and re-ingests only the ones whose
// content hash changed. Returns the URLs that were refreshed.
func (ing *Ingestor) RefreshChanged(ctx context.Context, urls []string) ([]string, error) {
	var refreshed []string
	for _, url := range urls {
		content, err := ing.fetchPage(ctx, url)
		if err != nil {
			log.Error().Err(err).Str("url", url).Msg("failed to check page for updates")
			continue
		}
		newHash := contentHash(content)
		if newHash == ing.getHash(url) {
			log.Debug().Str("url", url).Msg("no content change")
			continue
		}

		log.Info().Str("url", url).Msg("change detected, refreshing")
		if err := ing.store.Replace(ctx, CollectionWebsite, url, "Website", chunkWords(content)); err != nil {
			return refreshed, err
		}
		ing.setHash(url, newHash)
		refreshed = append(refreshed, url)
	}
	if len(refreshed) > 0 {
		if err := ing.saveHashes(); err != nil {
			return refreshed, err
		}
	}
	return refreshed, nil
}

// fetchPage downloads a page and extracts its visible text.
func (ing *Ingestor) fetchPage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko)")

	resp, err := ing.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", url, err)
	}

	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Find("body").Text()), " "), nil
}

// chunkWords splits text into overlapping word windows so that sentences
// spanning a boundary stay retrievable.
func chunkWords(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	step := chunkSize - chunkOverlap
	for start := 0; start < len(words); start += step {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func (ing *Ingestor) getHash(key string) string {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	return ing.hashes[key]
}

func (ing *Ingestor) setHash(key, value string) {
	ing.mu.Lock()
	ing.hashes[key] = value
	ing.mu.Unlock()
}

func (ing *Ingestor) loadHashes() {
	data, err := os.ReadFile(ing.hashPath)
	if err != nil {
		log.Info().Str("path", ing.hashPath).Msg("no hash file found, starting empty")
		return
	}
	ing.mu.Lock()
	defer ing.mu.Unlock()
	if err := sonic.Unmarshal(data, &ing.hashes); err != nil {
		log.Warn().Err(err).Str("path", ing.hashPath).Msg("failed to parse hash file, starting empty")
		ing.hashes = make(map[string]string)
	}
}

func (ing *Ingestor) saveHashes() error {
	ing.mu.Lock()
	data, err := sonic.Marshal(ing.hashes)
	ing.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal content hashes: %w", err)
	}
	if err := os.WriteFile(ing.hashPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to save content hashes: %w", err)
	}
	return nil
}
