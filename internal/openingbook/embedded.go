package openingbook

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed eco.tsv
var defaultTable []byte

// Default returns the embedded ECO table covering the most common tabiya
// positions. Each call parses the embedded table into a new Book; the
// returned Book is never mutated and is safe to share across every Query
// Layer instance in a process.
func Default() *Book {
	b, err := LoadReader(strings.NewReader(string(defaultTable)))
	if err != nil {
		// The embedded table is part of the binary; a parse failure here is
		// a build-time defect, not a runtime condition callers can recover
		// from.
		panic(fmt.Sprintf("openingbook: embedded table is invalid: %v", err))
	}
	return b
}
