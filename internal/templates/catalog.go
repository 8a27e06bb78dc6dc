// Package templates: каталог шаблонов PPTX и их превью.
package templates

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"slidecraft/internal/apperr"
)

// Descriptor: шаблон в ответе GET /api/templates. Строится на каждый
// запрос из содержимого каталога, в БД не хранится.
type Descriptor struct {
	Filename    string  `json:"filename"`
	Color       string  `json:"color"`
	Icon        string  `json:"icon"`
	Description string  `json:"description"`
	Thumbnail   *string `json:"thumbnail"` // nil: превью нет
}

type display struct {
	color, icon, description string
}

// оформление известных шаблонов; остальные получают genericDisplay
var displayTable = map[string]display{
	"blank_default.pptx": {"#ffffff", "⬜", "Clean white slides with default fonts"},
	"template.pptx":      {"#2a2b32", "🎨", "Custom company template"},
	"corporate.pptx":     {"#1f3a5f", "🏢", "Navy corporate layout for business decks"},
	"modern.pptx":        {"#6c5ce7", "✨", "Bold colors and large titles"},
	"minimal.pptx":       {"#f5f5f5", "◻️", "Minimal layout with lots of whitespace"},
	"dark.pptx":          {"#121212", "🌙", "Dark background for presentations on screens"},
}

var genericDisplay = display{"#2a2b32", "📄", "Custom template"}

// превью в порядке предпочтения: растр, затем вектор
var thumbnailExts = []string{".png", ".jpg", ".jpeg", ".svg"}

type Catalog struct {
	dir       string
	thumbDir  string
	urlPrefix string // /thumbnails
}

func NewCatalog(dir, thumbDir, urlPrefix string) *Catalog {
	return &Catalog{dir: dir, thumbDir: thumbDir, urlPrefix: strings.TrimRight(urlPrefix, "/")}
}

func (c *Catalog) Dir() string { return c.dir }

// List: шаблоны каталога по имени. Нет каталога: пустой список.
func (c *Catalog) List() ([]Descriptor, error) {
	names, err := templateFiles(c.dir)
	if err != nil {
		return nil, apperr.Dependency("Cannot read templates", err)
	}
	out := make([]Descriptor, 0, len(names))
	for _, name := range names {
		d, ok := displayTable[strings.ToLower(name)]
		if !ok {
			d = genericDisplay
		}
		out = append(out, Descriptor{
			Filename:    name,
			Color:       d.color,
			Icon:        d.icon,
			Description: d.description,
			Thumbnail:   c.thumbnail(name),
		})
	}
	return out, nil
}

func (c *Catalog) thumbnail(name string) *string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	for _, ext := range thumbnailExts {
		st, err := os.Stat(filepath.Join(c.thumbDir, base+ext))
		if err != nil || st.IsDir() {
			continue
		}
		u := c.urlPrefix + "/" + url.PathEscape(base+ext)
		return &u
	}
	return nil
}

// templateFiles: *.pptx каталога без скрытых и lock-файлов Office (~$...).
func templateFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		if strings.EqualFold(filepath.Ext(name), ".pptx") {
			names = append(names, name)
		}
	}
	return names, nil
}
