// Package loaders reads local document corpora for the local and hybrid
// report sources. Remote corpora (azure blobs, online documents) satisfy
// the same Loader interface from outside the core.
package loaders

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"researchnerd/internal/logging"
)

// Document is one loaded file.
type Document struct {
	Path    string
	Content string
}

// Loader produces documents for a research task.
type Loader interface {
	Load(ctx context.Context) ([]Document, error)
}

// loadableExtensions are the file types the directory loader understands.
var loadableExtensions = map[string]bool{
	".md": true, ".markdown": true, ".txt": true,
	".csv": true, ".json": true, ".html": true, ".htm": true,
}

// maxDocumentBytes bounds a single file read.
const maxDocumentBytes = 2 << 20

// DirLoader walks a directory tree (DOC_PATH) and loads every supported
// file.
type DirLoader struct {
	root string
}

// NewDirLoader creates a loader rooted at root.
func NewDirLoader(root string) *DirLoader {
	return &DirLoader{root: root}
}

// Load reads all supported files under the root. Unreadable files are
// skipped with a warning.
func (l *DirLoader) Load(ctx context.Context) ([]Document, error) {
	info, err := os.Stat(l.root)
	if err != nil {
		return nil, fmt.Errorf("document path %s: %w", l.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document path %s is not a directory", l.root)
	}

	var docs []Document
	err = filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !loadableExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		content, err := readDocument(path)
		if err != nil {
			logging.Get(logging.CategoryConductor).Warn("skipping unreadable document %s: %v", path, err)
			return nil
		}
		if strings.TrimSpace(content) == "" {
			return nil
		}
		docs = append(docs, Document{Path: path, Content: content})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Conductor("loaded %d documents from %s", len(docs), l.root)
	return docs, nil
}

func readDocument(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	data := make([]byte, maxDocumentBytes)
	n, err := file.Read(data)
	if err != nil && n == 0 {
		return "", err
	}
	content := string(data[:n])

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".html" || ext == ".htm" {
		return htmlToText(content), nil
	}
	return content, nil
}

// htmlToText flattens an HTML document into plain text.
func htmlToText(content string) string {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return content
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(sb.String())
}
