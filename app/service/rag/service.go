package rag

import (
	"compress/gzip"
	"context"
	"emoai/app/client/nvidia"
	"emoai/app/config"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

const (
	maxQueryLength = 4000
	defaultTopK    = 3
)

// datasets are the named indexes shipped with the service.
var datasets = []string{"empathy_user", "empathy_agent", "counsel_user", "counsel_agent"}

type index struct {
	vectors [][]float64
	corpus  []string
}

type embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Service answers nearest-neighbor queries over precomputed embedding
// corpora. Indexes load lazily on first use and are read-only afterwards.
type Service struct {
	indexDir string
	llm      embedder

	loadOnce sync.Once
	indexes  map[string]*index
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(cfg.Data.IndexDir, do.MustInvoke[*nvidia.Client](di)), nil
}

func NewService(indexDir string, llm embedder) *Service {
	return &Service{
		indexDir: indexDir,
		llm:      llm,
		indexes:  make(map[string]*index),
	}
}

// Retrieve returns the top-k corpus texts most similar to the query, joined
// by blank lines. A blank query, a missing index or an embedding failure all
// degrade to an empty context.
func (s *Service) Retrieve(ctx context.Context, indexName, query string, k int) string {
	if strings.TrimSpace(query) == "" || indexName == "" {
		return ""
	}
	if k <= 0 {
		k = defaultTopK
	}

	s.loadOnce.Do(s.loadAll)

	idx, ok := s.indexes[indexName]
	if !ok || len(idx.vectors) == 0 {
		return ""
	}

	if len(query) > maxQueryLength {
		query = query[:maxQueryLength]
	}

	queryVec, err := s.llm.Embed(ctx, query)
	if err != nil {
		slog.Warn("Query embedding failed, retrieving no context", "index", indexName, "error", err)
		return ""
	}

	type scored struct {
		idx   int
		score float64
	}

	scores := make([]scored, len(idx.vectors))
	for i, vec := range idx.vectors {
		scores[i] = scored{idx: i, score: cosineSimilarity(queryVec, vec)}
	}

	sort.Slice(scores, func(a, b int) bool {
		return scores[a].score > scores[b].score
	})

	if k > len(scores) {
		k = len(scores)
	}

	texts := make([]string, 0, k)
	for _, item := range scores[:k] {
		texts = append(texts, idx.corpus[item.idx])
	}

	return strings.Join(texts, "\n\n")
}

func (s *Service) loadAll() {
	var group errgroup.Group
	var mu sync.Mutex

	for _, name := range datasets {
		group.Go(func() error {
			idx, err := s.loadIndex(name)
			if err != nil {
				slog.Warn("Failed to load index, skipping", "index", name, "error", err)
				idx = &index{}
			}

			mu.Lock()
			s.indexes[name] = idx
			mu.Unlock()

			return nil
		})
	}

	_ = group.Wait()

	slog.Info("Vector indexes initialized", "count", len(s.indexes))
}

func (s *Service) loadIndex(name string) (*index, error) {
	vectorPath := filepath.Join(s.indexDir, fmt.Sprintf("vectors_%s.json.gz", name))
	corpusPath := filepath.Join(s.indexDir, fmt.Sprintf("faiss_%s_corpus.json.gz", name))

	var vectors [][]float64
	var corpus []string

	if err := readGzipJSON(vectorPath, &vectors); err != nil {
		if err = readPlainJSON(strings.TrimSuffix(vectorPath, ".gz"), &vectors); err != nil {
			return nil, fmt.Errorf("failed to load vectors for %s: %w", name, err)
		}
	}

	if err := readGzipJSON(corpusPath, &corpus); err != nil {
		if err = readPlainJSON(strings.TrimSuffix(corpusPath, ".gz"), &corpus); err != nil {
			return nil, fmt.Errorf("failed to load corpus for %s: %w", name, err)
		}
	}

	if len(vectors) != len(corpus) {
		n := min(len(vectors), len(corpus))
		slog.Warn("Vector/corpus length mismatch, truncating",
			"index", name,
			"vectors", len(vectors),
			"corpus", len(corpus))
		vectors = vectors[:n]
		corpus = corpus[:n]
	}

	slog.Info("Loaded index", "index", name, "vectors", len(vectors))

	return &index{vectors: vectors, corpus: corpus}, nil
}

func readGzipJSON(path string, target any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader for %s: %w", path, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to decompress %s: %w", path, err)
	}

	if err = json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return nil
}

func readPlainJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err = json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return nil
}

// cosineSimilarity guards against zero norms by falling back to a unit
// denominator, matching dot/(‖a‖·‖b‖ or 1).
func cosineSimilarity(a, b []float64) float64 {
	n := min(len(a), len(b))

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		denom = 1
	}

	return dot / denom
}
