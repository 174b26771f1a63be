package compile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// examplePair is one INPUT/OUTPUT pair from an .examples file.
type examplePair struct {
	Input  string
	Output string
}

// loadPromptContext reads <base>/prompts/<name>.prompt. The contents are
// prepended verbatim to the system prompt.
func loadPromptContext(baseDir, name string) (string, error) {
	path := filepath.Join(baseDir, "prompts", name+".prompt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("prompt context %q: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// loadExamples reads <base>/examples/<name>.examples: a sequence of
// "INPUT: ..." / "OUTPUT: ..." line pairs. Blank lines between pairs are
// optional; an INPUT without a following OUTPUT keeps an empty output.
func loadExamples(baseDir, name string) ([]examplePair, error) {
	path := filepath.Join(baseDir, "examples", name+".examples")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("examples %q: %w", name, err)
	}
	var pairs []examplePair
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "INPUT:"):
			pairs = append(pairs, examplePair{Input: strings.TrimSpace(line[len("INPUT:"):])})
		case strings.HasPrefix(line, "OUTPUT:"):
			if len(pairs) > 0 {
				pairs[len(pairs)-1].Output = strings.TrimSpace(line[len("OUTPUT:"):])
			}
		}
	}
	return pairs, nil
}
