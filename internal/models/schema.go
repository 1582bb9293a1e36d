package models

import "errors"

const (
	TextField   = "text"
	VectorField = "vector"
)

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// TableSchema is frozen when a table is created and read back when it is reopened.
type TableSchema struct {
	Name           string   `yaml:"name"`
	TextField      string   `yaml:"text_field"`
	VectorField    string   `yaml:"vector_field"`
	Dimensions     int      `yaml:"dimensions"`
	EmbeddingModel string   `yaml:"embedding_model,omitempty"`
	MetadataFields []string `yaml:"metadata_fields"`
}

func NewTableSchema(name string, dims int, embeddingModel string) TableSchema {
	return TableSchema{
		Name:           name,
		TextField:      TextField,
		VectorField:    VectorField,
		Dimensions:     dims,
		EmbeddingModel: embeddingModel,
		MetadataFields: append([]string(nil), MetadataFields...),
	}
}
