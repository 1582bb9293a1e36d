package parser

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nguyenthenguyen/docx"

	"document-qa/internal/models"
)

var (
	headingStyleRe = regexp.MustCompile(`(?i)^heading\s?(\d)$`)
	slideNameRe    = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

func parseDOCX(filePath string) (*models.Document, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}
	defer r.Close()

	return docxToDocument(r.Editable().GetContent())
}

func attrValue(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// headingLevel maps a paragraph style to an outline level, 0 for body text
func headingLevel(style string) int {
	if strings.EqualFold(style, "Title") {
		return 1
	}
	m := headingStyleRe.FindStringSubmatch(style)
	if m == nil {
		return 0
	}
	level, _ := strconv.Atoi(m[1])
	return level
}

// docxToDocument walks word/document.xml. Headings feed the outline and page
// breaks advance the page counter.
func docxToDocument(content string) (*models.Document, error) {
	dec := xml.NewDecoder(strings.NewReader(content))
	b := newDocBuilder()

	var (
		para        strings.Builder
		style       string
		inText      bool
		page        = 1
		pending     int
		brokeSince  bool
		hasParaText bool
	)

	pageBreak := func(rendered bool) {
		if rendered && brokeSince {
			return
		}
		brokeSince = true
		if hasParaText {
			pending++
		} else {
			page++
		}
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse docx content: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				para.Reset()
				style = ""
				hasParaText = false
			case "pStyle":
				style = attrValue(t, "val")
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br":
				if attrValue(t, "type") == "page" {
					pageBreak(false)
				} else {
					para.WriteByte('\n')
				}
			case "lastRenderedPageBreak":
				pageBreak(true)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				text := para.String()
				if level := headingLevel(style); level > 0 {
					b.outline.push(level, text)
				} else {
					b.add(models.LabelParagraph, text, page)
				}
				page += pending
				pending = 0
				para.Reset()
				hasParaText = false
			}
		case xml.CharData:
			if inText {
				para.Write(t)
				if strings.TrimSpace(string(t)) != "" {
					hasParaText = true
					brokeSince = false
				}
			}
		}
	}
	return b.doc, nil
}

type slideFile struct {
	num  int
	file *zip.File
}

func parsePPTX(filePath string) (*models.Document, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pptx: %w", err)
	}
	defer zr.Close()

	order, err := slideOrder(zr.File)
	if err != nil {
		return nil, err
	}

	var slides []slideFile
	for _, f := range zr.File {
		m := slideNameRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		if order != nil {
			pos, ok := order[f.Name]
			if !ok {
				continue
			}
			n = pos
		}
		slides = append(slides, slideFile{num: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	b := newDocBuilder()
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open slide %d: %w", s.num, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read slide %d: %w", s.num, err)
		}

		title, paras, err := slideText(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse slide %d: %w", s.num, err)
		}
		b.outline.reset()
		b.outline.push(1, title)
		for _, p := range paras {
			b.add(models.LabelParagraph, p, s.num)
		}
	}
	return b.doc, nil
}

type presentationXML struct {
	SlideIDs []struct {
		RelID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
}

type relationshipsXML struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// slideOrder maps slide part names to their 1-based position in the deck.
// It returns nil when the package has no presentation part to read the order from.
func slideOrder(files []*zip.File) (map[string]int, error) {
	var pres presentationXML
	var rels relationshipsXML
	found := 0
	for _, f := range files {
		var dst any
		switch f.Name {
		case "ppt/presentation.xml":
			dst = &pres
		case "ppt/_rels/presentation.xml.rels":
			dst = &rels
		default:
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		err = xml.NewDecoder(rc).Decode(dst)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.Name, err)
		}
		found++
	}
	if found < 2 {
		return nil, nil
	}

	targets := make(map[string]string, len(rels.Relationships))
	for _, r := range rels.Relationships {
		target := strings.TrimPrefix(r.Target, "/")
		if !strings.HasPrefix(target, "ppt/") {
			target = path.Join("ppt", target)
		}
		targets[r.ID] = target
	}

	order := make(map[string]int, len(pres.SlideIDs))
	for _, id := range pres.SlideIDs {
		if target, ok := targets[id.RelID]; ok {
			order[target] = len(order) + 1
		}
	}
	return order, nil
}

// slideText returns the title placeholder text and the remaining paragraphs of a slide
func slideText(data []byte) (string, []string, error) {
	dec := xml.NewDecoder(strings.NewReader(string(data)))

	var (
		title      []string
		paras      []string
		shapeParas []string
		shapeDepth int
		isTitle    bool
		inText     bool
		para       strings.Builder
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "sp":
				shapeDepth++
				if shapeDepth == 1 {
					isTitle = false
					shapeParas = nil
				}
			case "ph":
				switch attrValue(t, "type") {
				case "title", "ctrTitle":
					isTitle = true
				}
			case "p":
				para.Reset()
			case "t":
				inText = true
			case "br":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				text := strings.TrimSpace(para.String())
				para.Reset()
				if text == "" {
					continue
				}
				if shapeDepth > 0 {
					shapeParas = append(shapeParas, text)
				} else {
					paras = append(paras, text)
				}
			case "sp":
				shapeDepth--
				if shapeDepth == 0 {
					if isTitle {
						title = append(title, shapeParas...)
					} else {
						paras = append(paras, shapeParas...)
					}
					shapeParas = nil
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return strings.Join(title, " "), paras, nil
}
