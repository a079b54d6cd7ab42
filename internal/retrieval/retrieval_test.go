package retrieval

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// letterEmbedding is a deterministic embedding over letter frequencies, good
// enough to make near-identical texts neighbors.
func letterEmbedding(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, 27)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		} else {
			vec[26]++
		}
	}
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		vec[26] = 1
		return vec, nil
	}
	inv := 1 / float32(0.000001+norm)
	for i := range vec {
		vec[i] *= inv
	}
	return vec, nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStoreInMemory(letterEmbedding)
	require.NoError(t, err)
	return store
}

func TestRetrievePrefersWebsiteCollection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Replace(ctx, CollectionWebsite, "https://example.com/products", "Website",
		[]string{"SecureTrack detects threats across your cloud estate"}))
	require.NoError(t, store.Replace(ctx, CollectionSales, "SecureTrack", "SecureTrack",
		[]string{"SecureTrack enables 95% threat detection"}))

	chunks, err := store.Retrieve(ctx, "threat detection securetrack", "")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "https://example.com/products", chunks[0].Source)
	assert.Equal(t, "Website", chunks[0].Category)
	assert.Greater(t, chunks[0].Score, 0.0)
}

func TestRetrieveFallsBackToSales(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Replace(ctx, CollectionSales, "BizRadar", "BizRadar",
		[]string{"BizRadar tracks contracts daily across platforms"}))

	chunks, err := store.Retrieve(ctx, "contract tracking", "")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "BizRadar", chunks[0].Category)
}

func TestRetrieveEmptyStoreIsNotAnError(t *testing.T) {
	chunks, err := newTestStore(t).Retrieve(context.Background(), "anything", "")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestReplaceDropsStaleChunks(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	source := "https://example.com/about"
	require.NoError(t, store.Replace(ctx, CollectionWebsite, source, "Website",
		[]string{"old text one", "old text two"}))
	require.NoError(t, store.Replace(ctx, CollectionWebsite, source, "Website",
		[]string{"new text"}))

	assert.Equal(t, 1, store.Counts()[CollectionWebsite])
}

func TestChunkWordsOverlap(t *testing.T) {
	words := make([]string, 1000)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}

	chunks := chunkWords(strings.Join(words, " "))
	require.Len(t, chunks, 3)

	// Second window starts chunkSize-chunkOverlap words in, so the last 50
	// words of the first chunk lead the second.
	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])
	assert.Equal(t, first[len(first)-chunkOverlap:], second[:chunkOverlap])
}

func TestChunkWordsShortText(t *testing.T) {
	assert.Len(t, chunkWords("just a few words"), 1)
	assert.Empty(t, chunkWords("   "))
}

func TestIngestWebsiteScrapesAndHashes(t *testing.T) {
	ctx := context.Background()
	page := `<html><head><style>body{}</style></head>
	<body><h1>Cloud Security</h1><p>We secure cloud workloads.</p>
	<script>ignore()</script></body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	store := newTestStore(t)
	ingestor := NewIngestor(store, filepath.Join(t.TempDir(), "hashes.json"))

	require.NoError(t, ingestor.IngestWebsite(ctx, []string{server.URL}))
	assert.Equal(t, 1, store.Counts()[CollectionWebsite])

	chunks, err := store.Retrieve(ctx, "cloud security workloads", "")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.NotContains(t, chunks[0].Text, "ignore()", "script text must be stripped")
}

func TestRefreshChangedOnlyReingestsChangedPages(t *testing.T) {
	ctx := context.Background()

	content := "<html><body>version one of the page content</body></html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, content)
	}))
	defer server.Close()

	store := newTestStore(t)
	ingestor := NewIngestor(store, filepath.Join(t.TempDir(), "hashes.json"))
	require.NoError(t, ingestor.IngestWebsite(ctx, []string{server.URL}))

	refreshed, err := ingestor.RefreshChanged(ctx, []string{server.URL})
	require.NoError(t, err)
	assert.Empty(t, refreshed, "unchanged page must not be refreshed")

	content = "<html><body>version two, completely rewritten</body></html>"
	refreshed, err = ingestor.RefreshChanged(ctx, []string{server.URL})
	require.NoError(t, err)
	assert.Equal(t, []string{server.URL}, refreshed)
}

func TestHashesPersistAcrossIngestors(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>stable content</body></html>")
	}))
	defer server.Close()

	hashPath := filepath.Join(t.TempDir(), "hashes.json")
	store := newTestStore(t)

	first := NewIngestor(store, hashPath)
	require.NoError(t, first.IngestWebsite(ctx, []string{server.URL}))

	second := NewIngestor(store, hashPath)
	refreshed, err := second.RefreshChanged(ctx, []string{server.URL})
	require.NoError(t, err)
	assert.Empty(t, refreshed, "hashes must survive a restart")
}
