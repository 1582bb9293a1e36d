package parser

import (
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"document-qa/internal/models"
)

func parsePDF(filePath string) (*models.Document, error) {
	if err := validatePDF(filePath); err != nil {
		return nil, err
	}

	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	b := newDocBuilder()
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i, err)
		}
		for _, para := range splitParagraphs(pageText) {
			b.add(models.LabelParagraph, para, i)
		}
	}
	return b.doc, nil
}

// validatePDF rejects corrupt files before text extraction
func validatePDF(filePath string) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(filePath, conf); err != nil {
		return fmt.Errorf("invalid pdf: %w", err)
	}
	return nil
}
