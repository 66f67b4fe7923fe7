// Package normalisers holds the normaliser registry and the text helpers
// shared by the format packages beneath it. Each format package extracts
// sections from one family of MIME types.
//
// Normalisers are registered with the Registry at startup.
package normalisers
