package search

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"NewsAnalyst/internal/domain"
)

// Index wraps a Bleve index over stored articles.
type Index struct {
	index bleve.Index
}

// document is what gets indexed for one article.
type document struct {
	Title   string
	Content string
	Source  string
}

// Open opens or creates the index at path. An empty path keeps the index in
// memory for the lifetime of the process.
func Open(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create memory index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return &Index{index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = "en"

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = "en"
	contentField.Store = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("Title", titleField)
	docMapping.AddFieldMappingsAt("Content", contentField)
	docMapping.AddFieldMappingsAt("Source", bleve.NewKeywordFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

func toDocument(a domain.Article) document {
	content := a.FullText
	if a.Summary != "" {
		content = a.Summary + "\n" + content
	}
	return document{Title: a.Title, Content: content, Source: a.Source}
}

// Add indexes or reindexes one article.
func (i *Index) Add(a domain.Article) error {
	return i.index.Index(strconv.FormatInt(a.ID, 10), toDocument(a))
}

// AddBatch indexes many articles in one commit.
func (i *Index) AddBatch(articles []domain.Article) error {
	batch := i.index.NewBatch()
	for _, a := range articles {
		if err := batch.Index(strconv.FormatInt(a.ID, 10), toDocument(a)); err != nil {
			return fmt.Errorf("batch index %d: %w", a.ID, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Search returns matching article ids, best first. Title matches weigh
// three times as much as body matches.
func (i *Index) Search(text string, limit int) ([]int64, error) {
	title := bleve.NewMatchQuery(text)
	title.SetField("Title")
	title.SetBoost(3)

	content := bleve.NewMatchQuery(text)
	content.SetField("Content")

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(title, content), limit, 0, false)
	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	ids := make([]int64, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Count returns the number of indexed articles.
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

// Close closes the index.
func (i *Index) Close() error {
	return i.index.Close()
}
