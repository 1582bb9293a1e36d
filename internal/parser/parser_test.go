package parser

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-qa/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConvert_Text(t *testing.T) {
	path := writeFile(t, "notes.txt", "First paragraph\nstill first.\n\n\nSecond paragraph.\n")

	doc, err := NewDocumentConverter().Convert(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, "notes.txt", doc.Origin.Filename)
	assert.Contains(t, doc.Origin.MimeType, "text/plain")
	require.Len(t, doc.Items, 2)
	assert.Equal(t, "First paragraph\nstill first.", doc.Items[0].Text)
	assert.Equal(t, models.LabelParagraph, doc.Items[0].Label)
	assert.Nil(t, doc.Items[0].Pages)
	assert.Equal(t, "Second paragraph.", doc.Items[1].Text)
}

func TestConvert_EmptyFileYieldsNoDocument(t *testing.T) {
	path := writeFile(t, "empty.txt", "  \n\n \n")

	doc, err := NewDocumentConverter().Convert(context.Background(), path)
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestConvert_MissingFile(t *testing.T) {
	_, err := NewDocumentConverter().Convert(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConvert_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0x02, 0xff, 0x00}, 0o644))

	_, err := NewDocumentConverter().Convert(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestConvert_DetectsTextWithoutExtension(t *testing.T) {
	path := writeFile(t, "README", "Plain words without an extension.")

	doc, err := NewDocumentConverter().Convert(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "README", doc.Origin.Filename)
}

func TestConvert_CorruptPDF(t *testing.T) {
	path := writeFile(t, "broken.pdf", "%PDF-1.4\nthis is not really a pdf\n")

	doc, err := NewDocumentConverter().Convert(context.Background(), path)
	assert.Error(t, err)
	assert.Nil(t, doc)
}

func TestConvert_CancelledContext(t *testing.T) {
	path := writeFile(t, "notes.txt", "text")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDocumentConverter().Convert(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvert_Markdown(t *testing.T) {
	src := strings.Join([]string{
		"# Guide",
		"",
		"Intro *paragraph*.",
		"",
		"## Setup",
		"",
		"- first step",
		"- second step",
		"",
		"| Name | Value |",
		"|------|-------|",
		"| a    | 1     |",
		"",
		"```go",
		"fmt.Println(\"hi\")",
		"```",
		"",
		"# Appendix",
		"",
		"> quoted",
		"",
	}, "\n")
	path := writeFile(t, "guide.md", src)

	doc, err := NewDocumentConverter().Convert(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Len(t, doc.Items, 6)

	assert.Equal(t, models.DocItem{Label: models.LabelParagraph, Text: "Intro paragraph.", Headings: []string{"Guide"}}, doc.Items[0])
	assert.Equal(t, models.DocItem{Label: models.LabelListItem, Text: "first step", Headings: []string{"Guide", "Setup"}}, doc.Items[1])
	assert.Equal(t, "second step", doc.Items[2].Text)
	assert.Equal(t, models.LabelTable, doc.Items[3].Label)
	assert.Equal(t, "Name | Value\na | 1", doc.Items[3].Text)
	assert.Equal(t, models.LabelCode, doc.Items[4].Label)
	assert.Equal(t, `fmt.Println("hi")`, doc.Items[4].Text)
	assert.Equal(t, models.DocItem{Label: models.LabelQuote, Text: "quoted", Headings: []string{"Appendix"}}, doc.Items[5])
}

func TestConvert_HTML(t *testing.T) {
	src := `<html><head><title>Ignored</title><style>p{color:red}</style></head><body>` +
		`<h1>Report</h1><p>Hello   world</p><ul><li>One</li></ul>` +
		`<h2>Data</h2><table><tr><th>k</th><th>v</th></tr><tr><td>a</td><td>1</td></tr></table>` +
		`<script>var x = 1;</script></body></html>`
	path := writeFile(t, "report.html", src)

	doc, err := NewDocumentConverter().Convert(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Len(t, doc.Items, 3)

	assert.Equal(t, models.DocItem{Label: models.LabelParagraph, Text: "Hello world", Headings: []string{"Report"}}, doc.Items[0])
	assert.Equal(t, models.DocItem{Label: models.LabelListItem, Text: "One", Headings: []string{"Report"}}, doc.Items[1])
	assert.Equal(t, models.DocItem{Label: models.LabelTable, Text: "k | v\na | 1", Headings: []string{"Report", "Data"}}, doc.Items[2])
}

func TestHTMLToDocument_InlineRunsFormOneParagraph(t *testing.T) {
	doc, err := htmlToDocument(strings.NewReader(
		`<body><div>Hello <b>world</b> again<p>Next</p>tail <a href="#">link</a></div><!-- note --></body>`))
	require.NoError(t, err)
	require.Len(t, doc.Items, 3)
	assert.Equal(t, "Hello world again", doc.Items[0].Text)
	assert.Equal(t, "Next", doc.Items[1].Text)
	assert.Equal(t, "tail link", doc.Items[2].Text)
}

func TestDocxToDocument(t *testing.T) {
	content := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Intro</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t xml:space="preserve">First page </w:t></w:r><w:r><w:t>text.</w:t></w:r></w:p>` +
		`<w:p><w:r><w:br w:type="page"/></w:r><w:r><w:lastRenderedPageBreak/><w:t>Second page text.</w:t></w:r></w:p>` +
		`<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Details</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Closing words.</w:t></w:r><w:r><w:br w:type="page"/></w:r></w:p>` +
		`<w:p><w:r><w:t>Last page.</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	doc, err := docxToDocument(content)
	require.NoError(t, err)
	require.Len(t, doc.Items, 4)

	assert.Equal(t, models.DocItem{Label: models.LabelParagraph, Text: "First page text.", Headings: []string{"Intro"}, Pages: []int{1}}, doc.Items[0])
	assert.Equal(t, []int{2}, doc.Items[1].Pages)
	assert.Equal(t, models.DocItem{Label: models.LabelParagraph, Text: "Closing words.", Headings: []string{"Intro", "Details"}, Pages: []int{2}}, doc.Items[2])
	assert.Equal(t, []int{3}, doc.Items[3].Pages)
}

func TestDocxToDocument_Malformed(t *testing.T) {
	_, err := docxToDocument(`<w:document><w:body><w:p>`)
	assert.Error(t, err)
}

func slideXML(title string, body ...string) string {
	var sb strings.Builder
	sb.WriteString(`<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><p:cSld><p:spTree>`)
	if title != "" {
		sb.WriteString(`<p:sp><p:nvSpPr><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr><p:txBody><a:p><a:r><a:t>` + title + `</a:t></a:r></a:p></p:txBody></p:sp>`)
	}
	sb.WriteString(`<p:sp><p:nvSpPr><p:nvPr/></p:nvSpPr><p:txBody>`)
	for _, b := range body {
		sb.WriteString(`<a:p><a:r><a:t>` + b + `</a:t></a:r></a:p>`)
	}
	sb.WriteString(`</p:txBody></p:sp></p:spTree></p:cSld></p:sld>`)
	return sb.String()
}

func writePPTX(t *testing.T, files map[string]string, order []string) string {
	t.Helper()
	return writeZip(t, "deck.pptx", files, order)
}

func writeZip(t *testing.T, name string, files map[string]string, order []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestConvert_PPTX(t *testing.T) {
	files := map[string]string{
		"ppt/slides/slide2.xml":           slideXML("Next", "Closing"),
		"ppt/slides/slide1.xml":           slideXML("Overview", "Point one", "Point two"),
		"ppt/slides/_rels/slide1.xml.rels": `<Relationships/>`,
	}
	path := writePPTX(t, files, []string{"ppt/slides/slide2.xml", "ppt/slides/_rels/slide1.xml.rels", "ppt/slides/slide1.xml"})

	doc, err := NewDocumentConverter().Convert(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Len(t, doc.Items, 3)

	assert.Equal(t, "deck.pptx", doc.Origin.Filename)
	assert.Equal(t, models.DocItem{Label: models.LabelParagraph, Text: "Point one", Headings: []string{"Overview"}, Pages: []int{1}}, doc.Items[0])
	assert.Equal(t, "Point two", doc.Items[1].Text)
	assert.Equal(t, models.DocItem{Label: models.LabelParagraph, Text: "Closing", Headings: []string{"Next"}, Pages: []int{2}}, doc.Items[2])
}

func TestConvert_PPTXFollowsPresentationOrder(t *testing.T) {
	files := map[string]string{
		"ppt/presentation.xml": `<p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" ` +
			`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
			`<p:sldIdLst><p:sldId id="256" r:id="rId7"/><p:sldId id="257" r:id="rId8"/></p:sldIdLst></p:presentation>`,
		"ppt/_rels/presentation.xml.rels": `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId8" Type="slide" Target="slides/slide1.xml"/>` +
			`<Relationship Id="rId7" Type="slide" Target="slides/slide2.xml"/>` +
			`<Relationship Id="rId9" Type="slide" Target="slides/slide3.xml"/></Relationships>`,
		"ppt/slides/slide1.xml": slideXML("Moved", "now second"),
		"ppt/slides/slide2.xml": slideXML("Opening", "now first"),
		"ppt/slides/slide3.xml": slideXML("Orphan", "not in the deck"),
	}
	order := []string{"ppt/presentation.xml", "ppt/_rels/presentation.xml.rels",
		"ppt/slides/slide1.xml", "ppt/slides/slide2.xml", "ppt/slides/slide3.xml"}
	path := writePPTX(t, files, order)

	doc, err := NewDocumentConverter().Convert(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Len(t, doc.Items, 2)
	assert.Equal(t, models.DocItem{Label: models.LabelParagraph, Text: "now first", Headings: []string{"Opening"}, Pages: []int{1}}, doc.Items[0])
	assert.Equal(t, models.DocItem{Label: models.LabelParagraph, Text: "now second", Headings: []string{"Moved"}, Pages: []int{2}}, doc.Items[1])
}

func TestSlideText_NoTitle(t *testing.T) {
	title, paras, err := slideText([]byte(slideXML("", "only body")))
	require.NoError(t, err)
	assert.Empty(t, title)
	assert.Equal(t, []string{"only body"}, paras)
}

func writeXLSX(t *testing.T, sheetData string) string {
	t.Helper()
	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/xl/workbook.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"/>` +
			`<Override PartName="/xl/worksheets/sheet1.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"/>` +
			`</Types>`,
		"_rels/.rels": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/>` +
			`</Relationships>`,
		"xl/workbook.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
			`<sheets><sheet name="Sheet1" sheetId="1" r:id="rId1"/></sheets></workbook>`,
		"xl/_rels/workbook.xml.rels": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>` +
			`</Relationships>`,
		"xl/worksheets/sheet1.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>` +
			sheetData + `</sheetData></worksheet>`,
	}
	order := []string{"[Content_Types].xml", "_rels/.rels", "xl/workbook.xml", "xl/_rels/workbook.xml.rels", "xl/worksheets/sheet1.xml"}
	return writeZip(t, "book.xlsx", files, order)
}

func TestConvert_XLSXCellOutsideSheetLimits(t *testing.T) {
	path := writeXLSX(t, `<row r="1"><c r="ZZZZZZZZ1" t="inlineStr"><is><t>x</t></is></c></row>`)

	doc, err := NewDocumentConverter().Convert(context.Background(), path)
	assert.Error(t, err)
	assert.Nil(t, doc)
}

func TestValidateWorkbook(t *testing.T) {
	good := writeXLSX(t, `<row r="1"><c r="A1" t="inlineStr"><is><t>Name</t></is></c><c r="B1" t="inlineStr"><is><t>Age</t></is></c></row>`)
	assert.NoError(t, validateWorkbook(good))

	assert.Error(t, validateWorkbook(writeFile(t, "junk.xlsx", "not a zip")))
}

func TestTableText(t *testing.T) {
	rows := [][]string{
		{"Name", "Age", ""},
		{"", "", ""},
		{" Ann ", "31"},
	}
	assert.Equal(t, "Name | Age\nAnn | 31", tableText(rows))
	assert.Empty(t, tableText(nil))
}

func TestOutline(t *testing.T) {
	var o outline
	assert.Nil(t, o.headings())

	o.push(1, "A")
	o.push(2, "B")
	o.push(3, "C")
	assert.Equal(t, []string{"A", "B", "C"}, o.headings())

	o.push(2, "D")
	assert.Equal(t, []string{"A", "D"}, o.headings())

	o.push(1, " ")
	assert.Equal(t, []string{"A", "D"}, o.headings())

	o.reset()
	assert.Nil(t, o.headings())
}

func TestSplitParagraphs(t *testing.T) {
	assert.Equal(t, []string{"a\nb", "c"}, splitParagraphs("a\r\nb\r\n \r\nc"))
	assert.Nil(t, splitParagraphs("\n\n"))
}
