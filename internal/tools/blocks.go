package tools

import (
	"regexp"
	"strings"
)

// Block is one fenced artifact extracted from a worker answer. The fence
// header is "```language" or "```language:filename"; a filename makes the
// block a file to save, otherwise it is inline code.
type Block struct {
	Language string
	Filename string
	Code     string
}

var fenceHeaderPattern = regexp.MustCompile("^```([a-zA-Z_][\\w+-]*)(?::([^\\s`]+))?\\s*$")

// savedFilePattern mirrors the fence header for quick filename scans without
// a full parse.
var savedFilePattern = regexp.MustCompile("```\\w+:([^\\n`]+)")

// ParseBlocks extracts every fenced block from an answer. Unterminated
// fences swallow the rest of the text, matching how the artifact markers are
// produced: a fence is always opened intentionally, but a model may stop
// before closing it.
func ParseBlocks(answer string) []Block {
	var blocks []Block
	lines := strings.Split(answer, "\n")

	for i := 0; i < len(lines); i++ {
		m := fenceHeaderPattern.FindStringSubmatch(strings.TrimRight(lines[i], " \t"))
		if m == nil {
			continue
		}
		var code []string
		j := i + 1
		for ; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == "```" {
				break
			}
			code = append(code, lines[j])
		}
		blocks = append(blocks, Block{
			Language: strings.ToLower(m[1]),
			Filename: m[2],
			Code:     strings.Join(code, "\n"),
		})
		i = j
	}
	return blocks
}

// HasBlocks reports whether the answer carries any fenced artifact at all.
func HasBlocks(answer string) bool {
	return strings.Contains(answer, "```")
}

// SavedFilenames lists the filenames named in fence headers, in order.
func SavedFilenames(answer string) []string {
	var out []string
	for _, m := range savedFilePattern.FindAllStringSubmatch(answer, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// StripBlocks removes fenced code from an answer, leaving the prose. Used
// when the final answer is reported back and the code already lives on disk.
func StripBlocks(answer string) string {
	var out []string
	lines := strings.Split(answer, "\n")
	inFence := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !inFence && fenceHeaderPattern.MatchString(trimmed) {
			inFence = true
			continue
		}
		if inFence && trimmed == "```" {
			inFence = false
			continue
		}
		if !inFence {
			out = append(out, line)
		}
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
