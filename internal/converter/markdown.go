package converter

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	inlineImageRe = regexp.MustCompile(`!\[.*?\]\(.*?\)`)
	dataURLRe     = regexp.MustCompile(`^data:image/([A-Za-z0-9.+-]+);base64,`)
)

// StripInlineImages убирает из markdown все ссылки вида ![alt](src):
// картинки приходят отдельно, а не из текста модели.
func StripInlineImages(md string) string {
	return inlineImageRe.ReplaceAllString(md, "")
}

// imageSlide: отдельный слайд без заголовка под одну картинку.
func imageSlide(absPath string) string {
	return fmt.Sprintf("\n\n## \n\n![](%s)\n", filepath.ToSlash(absPath))
}

// SlideCount: число заголовков # и ## вне блоков кода, минимум 1.
func SlideCount(md string) int {
	n := 0
	inFence := false
	fence := ""
	sc := bufio.NewScanner(strings.NewReader(md))
	sc.Buffer(make([]byte, 0, 64*1024), len(md)+1)
	for sc.Scan() {
		line := strings.TrimLeft(sc.Text(), " ")
		if strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~") {
			marker := line[:3]
			switch {
			case !inFence:
				inFence, fence = true, marker
			case marker == fence:
				inFence = false
			}
			continue
		}
		if inFence {
			continue
		}
		if isSlideHeading(line) {
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

func isSlideHeading(line string) bool {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 2 {
		return false
	}
	return level == len(line) || line[level] == ' ' || line[level] == '\t'
}

// decodeImage разбирает base64 (с data:-префиксом или без) и подбирает расширение.
func decodeImage(name, data string) ([]byte, string, error) {
	ext := ""
	if m := dataURLRe.FindStringSubmatch(data); m != nil {
		ext = mimeExt(m[1])
		data = data[len(m[0]):]
	}
	if ext == "" {
		switch e := strings.ToLower(filepath.Ext(name)); e {
		case ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".bmp":
			ext = e
		default:
			ext = ".jpg"
		}
	}
	data = strings.TrimSpace(data)
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
	}
	if err != nil {
		return nil, "", err
	}
	if len(b) == 0 {
		return nil, "", fmt.Errorf("empty image")
	}
	return b, ext, nil
}

func mimeExt(sub string) string {
	switch strings.ToLower(sub) {
	case "jpeg", "jpg", "pjpeg":
		return ".jpg"
	case "svg+xml":
		return ".svg"
	case "png", "gif", "webp", "bmp":
		return "." + strings.ToLower(sub)
	default:
		return ""
	}
}
