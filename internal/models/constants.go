package models

const (
	DefaultStoragePath    = "data/lancedb"
	DefaultTableName      = "docling"
	DefaultUploadsDir     = "data/uploads"
	DefaultEmbeddingModel = "text-embedding-3-large"
	DefaultChatModel      = "gpt-4o-mini"
	DefaultTemperature    = 0.4
	DefaultNumResults     = 5

	// text-embedding-3-large context limit
	DefaultMaxTokens = 8191

	StatusSuccess       = "success"
	StatusFailedPrefix  = "failed: "
	MaxStatusReasonRune = 100

	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	ContextSeparator = "\n\n"
	UnknownSource    = "Unknown source"
	UntitledSection  = "Untitled section"
)

var (
	SystemPromptTemplate = `You are a helpful assistant that answers questions based strictly on the provided context.
Use only the information from the context to answer questions. If you're unsure or the context
doesn't contain the relevant information, clearly state that you cannot answer based on the available context.
Be precise and only cite information that is explicitly mentioned in the context.

Context:
%s
`

	NoContextResponse = "I couldn't find any relevant information in the uploaded documents to answer your question. " +
		"Please try rephrasing your question or upload additional documents that might contain the information you're looking for."

	EmptyTableHint = "Please upload and process some documents (:ingest FILE...) before asking questions!"
)
