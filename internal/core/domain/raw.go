package domain

// RawDocument is a file's bytes as read from disk, before normalisation.
type RawDocument struct {
	// Path is where the file was read from.
	Path string

	// Filename is the sanitised file name.
	Filename string

	// MIMEType is the content type (e.g., "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains caller-supplied key-value pairs.
	Metadata map[string]any
}
