// Package codewords holds the fixed 256-entry word list used to build
// human-speakable transfer codes of the form "D-word1-word2".
//
// The list is shipped as data, not logic (per the spec's external-
// collaborator boundary): both endpoints must carry byte-identical copies,
// so it is embedded from a flat text asset rather than hand-duplicated
// across the sender and receiver halves of the codebase.
package codewords

import (
	_ "embed"
	"strings"
	"sync"
)

//go:embed words.txt
var wordListAsset string

var (
	wordsOnce sync.Once
	words     [256]string
)

func load() {
	wordsOnce.Do(func() {
		lines := strings.Split(strings.TrimSpace(wordListAsset), "\n")
		if len(lines) != 256 {
			panic("codewords: embedded word list must have exactly 256 entries")
		}
		for i, w := range lines {
			words[i] = strings.TrimSpace(w)
		}
	})
}

// Word returns the word at index i (0-255). It panics if i is out of range,
// mirroring the build-time invariant that both endpoints carry the same
// 256-entry canonical list.
func Word(i int) string {
	load()
	return words[i]
}

// Len reports the size of the canonical word list: always 256.
func Len() int {
	return 256
}

// IndexOf returns the index of w in the canonical list, or -1 if w is not
// present. Comparison is case-insensitive.
func IndexOf(w string) int {
	load()
	w = strings.ToLower(strings.TrimSpace(w))
	for i, candidate := range words {
		if candidate == w {
			return i
		}
	}
	return -1
}
