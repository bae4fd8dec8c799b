package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WholeCorpusID is the reserved descriptor id meaning "search across
// all categories". It never appears in the UI tree.
const WholeCorpusID = "0"

// fullTextStartMarker separates preamble from the normative body in
// converted instruction files.
const fullTextStartMarker = "<<ТЕКСТ НОРМАТИВА НАЧАЛО>>"

// Descriptor is the immutable manifest entry for one known document.
type Descriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Filename    string `json:"filename"`
	Description string `json:"description"`
}

// TreeNode is one category with its documents, shaped for the client's
// sidebar tree.
type TreeNode struct {
	Name     string     `json:"name"`
	Icon     string     `json:"icon"`
	Children []TreeLeaf `json:"children"`
}

type TreeLeaf struct {
	Name      string `json:"name"`
	DocIDText string `json:"doc_id_text"`
	Filename  string `json:"filename"`
	Icon      string `json:"icon"`
}

var categoryIcons = map[string]string{
	"Основные кодексы и законы":        "fas fa-landmark",
	"Организация и общие работы":       "fas fa-project-diagram",
	"Отделочные и изоляционные работы": "fas fa-paint-roller",
	"Специальные работы и защита":      "fas fa-shield-alt",
	"Инженерные системы":               "fas fa-cogs",
	"Корпоративные стандарты":          "fas fa-building",
	"Другое":                           "fas fa-folder",
}

const defaultCategory = "Другое"

// Catalog holds the manifest of all known documents, loaded once at
// process start.
type Catalog struct {
	docs            []Descriptor
	instructionsDir string
}

// Load reads the manifest file and returns a ready catalog. The
// instructions dir is where converted full-text documents live.
func Load(manifestPath, instructionsDir string) (*Catalog, error) {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var docs []Descriptor
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	return &Catalog{
		docs:            docs,
		instructionsDir: instructionsDir,
	}, nil
}

// All returns every manifest entry in manifest order.
func (c *Catalog) All() []Descriptor {
	return c.docs
}

// Find returns the descriptor for the given id, or false.
func (c *Catalog) Find(id string) (Descriptor, bool) {
	for _, d := range c.docs {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// IDs returns every routable document id, excluding the whole-corpus
// sentinel.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.docs))
	for _, d := range c.docs {
		if d.ID == "" || d.ID == WholeCorpusID {
			continue
		}
		ids = append(ids, d.ID)
	}
	return ids
}

// Tree groups documents by category for the client sidebar. The
// whole-corpus sentinel is excluded.
func (c *Catalog) Tree() []TreeNode {
	byCategory := make(map[string]*TreeNode)
	order := make([]string, 0)

	for _, doc := range c.docs {
		if doc.ID == WholeCorpusID {
			continue
		}

		catName := doc.Category
		if catName == "" {
			catName = defaultCategory
		}

		node, ok := byCategory[catName]
		if !ok {
			icon, ok := categoryIcons[catName]
			if !ok {
				icon = categoryIcons[defaultCategory]
			}
			node = &TreeNode{Name: catName, Icon: icon}
			byCategory[catName] = node
			order = append(order, catName)
		}

		node.Children = append(node.Children, TreeLeaf{
			Name:      doc.Name,
			DocIDText: doc.ID,
			Filename:  doc.Filename,
			Icon:      "far fa-file-alt",
		})
	}

	tree := make([]TreeNode, 0, len(order))
	for _, catName := range order {
		tree = append(tree, *byCategory[catName])
	}
	return tree
}

// FullText loads a document's converted full text from the
// instructions dir, strips any preamble before the start marker, and
// returns the body.
func (c *Catalog) FullText(id string) (string, error) {
	doc, ok := c.Find(id)
	if !ok || doc.Filename == "" {
		return "", fmt.Errorf("document %q is not in the manifest", id)
	}

	path := filepath.Join(c.instructionsDir, doc.Filename)
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document file %s: %w", doc.Filename, err)
	}

	text := string(raw)
	if pos := strings.Index(text, fullTextStartMarker); pos != -1 {
		text = text[pos+len(fullTextStartMarker):]
	}

	return strings.TrimSpace(text), nil
}
