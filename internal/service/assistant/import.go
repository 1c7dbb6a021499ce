package assistant

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"

	"fabricguide/internal/models"
)

// MaxImportedBodyRunes caps the body of a snippet imported from a document.
const MaxImportedBodyRunes = 8000

var (
	loaderOnce sync.Once
	docLoader  *file.FileLoader
	loaderErr  error
)

func documentLoader() (*file.FileLoader, error) {
	loaderOnce.Do(func() {
		ctx := context.Background()
		parserExt, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
			FallbackParser: parser.TextParser{},
		})
		if err != nil {
			loaderErr = fmt.Errorf("init document parser: %w", err)
			return
		}
		docLoader, loaderErr = file.NewFileLoader(ctx, &file.FileLoaderConfig{
			UseNameAsID: true,
			Parser:      parserExt,
		})
	})
	return docLoader, loaderErr
}

// ImportSnippetFile reads a document from disk and stores its text as a new
// active snippet. An empty title falls back to the file name.
func (s *Service) ImportSnippetFile(ctx context.Context, path, title string) (*models.KnowledgeSnippet, error) {
	loader, err := documentLoader()
	if err != nil {
		return nil, err
	}
	docs, err := loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	var builder strings.Builder
	for _, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(content)
	}
	body := builder.String()
	if body == "" {
		return nil, errors.New("document has no readable text content")
	}
	if runes := []rune(body); len(runes) > MaxImportedBodyRunes {
		body = string(runes[:MaxImportedBodyRunes])
	}
	if strings.TrimSpace(title) == "" {
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return s.CreateSnippet(ctx, title, body)
}
