package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

type parseFunc func(filePath string) (*models.Document, error)

var parsers = map[string]parseFunc{
	".pdf":      parsePDF,
	".docx":     parseDOCX,
	".pptx":     parsePPTX,
	".xlsx":     parseXLSX,
	".xlsm":     parseWorkbook,
	".xltx":     parseWorkbook,
	".xltm":     parseWorkbook,
	".md":       parseMarkdown,
	".markdown": parseMarkdown,
	".html":     parseHTML,
	".htm":      parseHTML,
	".txt":      parseText,
}

// SupportedExtensions lists the extensions Convert dispatches on.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".pptx", ".xlsx", ".md", ".html", ".txt"}
}

// DocumentConverter turns files into structured documents.
type DocumentConverter struct{}

func NewDocumentConverter() *DocumentConverter {
	return &DocumentConverter{}
}

// Convert parses filePath. It returns a nil document and nil error when the file holds no text.
func (c *DocumentConverter) Convert(ctx context.Context, filePath string) (*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(filePath); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	mime := ""
	parse, ok := parsers[ext]
	if !ok {
		detected, err := mimetype.DetectFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to detect file type: %w", err)
		}
		mime = detected.String()
		parse, ok = parsers[detected.Extension()]
		if !ok {
			return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, ext, mime)
		}
		log.Debug().Str("file", filePath).Str("mime", mime).Msg("Detected file type from content")
	}

	doc, err := parse(filePath)
	if err != nil {
		return nil, err
	}
	if doc == nil || len(doc.Items) == 0 {
		return nil, nil
	}

	if mime == "" {
		if detected, err := mimetype.DetectFile(filePath); err == nil {
			mime = detected.String()
		}
	}
	doc.Origin = models.Origin{
		Filename: filepath.Base(filePath),
		MimeType: mime,
	}
	return doc, nil
}

func parseText(filePath string) (*models.Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	b := newDocBuilder()
	for _, p := range splitParagraphs(string(data)) {
		b.add(models.LabelParagraph, p)
	}
	return b.doc, nil
}

var blankLineRe = regexp.MustCompile(`\n[ \t]*\n`)

// splitParagraphs splits text on blank lines
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range blankLineRe.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// outline tracks the heading path of the current position in a document
type outline struct {
	levels []int
	titles []string
}

func (o *outline) push(level int, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	for len(o.levels) > 0 && o.levels[len(o.levels)-1] >= level {
		o.levels = o.levels[:len(o.levels)-1]
		o.titles = o.titles[:len(o.titles)-1]
	}
	o.levels = append(o.levels, level)
	o.titles = append(o.titles, title)
}

func (o *outline) reset() {
	o.levels = nil
	o.titles = nil
}

func (o *outline) headings() []string {
	if len(o.titles) == 0 {
		return nil
	}
	return append([]string(nil), o.titles...)
}

type docBuilder struct {
	doc     *models.Document
	outline outline
}

func newDocBuilder() *docBuilder {
	return &docBuilder{doc: &models.Document{}}
}

func (b *docBuilder) add(label, text string, pages ...int) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	item := models.DocItem{
		Label:    label,
		Text:     text,
		Headings: b.outline.headings(),
	}
	if len(pages) > 0 {
		item.Pages = append([]int(nil), pages...)
	}
	b.doc.Items = append(b.doc.Items, item)
}
