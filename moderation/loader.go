package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed censored/*.txt
var censoredFS embed.FS

// WordList carries the loaded blacklist with metadata for logging.
type WordList struct {
	Words     []string
	Languages []string
}

// LoadWords reads every embedded .txt dictionary, one word per line, "#"
// starting a comment. Filenames name the language ("en.txt" -> "en").
func LoadWords() (WordList, error) {
	entries, err := fs.ReadDir(censoredFS, "censored")
	if err != nil {
		return WordList{}, err
	}

	var languages []string
	unique := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := censoredFS.ReadFile("censored/" + entry.Name())
		if err != nil {
			return WordList{}, err
		}

		// Scanner handles \n and \r\n line endings alike.
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			unique[strings.ToLower(line)] = struct{}{}
		}
		if err := scanner.Err(); err != nil {
			return WordList{}, err
		}
	}

	words := make([]string, 0, len(unique))
	for w := range unique {
		words = append(words, w)
	}
	sort.Strings(words)

	return WordList{Words: words, Languages: languages}, nil
}
