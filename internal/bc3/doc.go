// Package bc3 reads and writes FIEBDC-3 (BC3) construction budget files.
//
// A BC3 file is a sequence of records. Each record starts with '~' and a
// one letter kind, followed by '|' separated fields. Fields holding lists
// use '\' as the sub-field separator. Codes ending in '#' are chapters and
// codes ending in '##' are the project root.
//
// Reading is split in three steps: Decode turns raw bytes into text, Parse
// turns text into Records, and the Extract functions turn Records into
// concepts, decompositions, texts and hierarchy. BuildChunks renders those
// into retrievable text blocks.
//
// Writing goes through Build, which emits a complete, structurally valid
// file for a list of line items, and Encode, which converts it to Latin-1.
package bc3
