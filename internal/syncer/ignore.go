package syncer

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

const ignoreFileName = ".refsyncignore"

var defaultIgnoreLines = []string{
	ignoreFileName,
	".refsync/",
	".git/",
	".DS_Store",
	"Thumbs.db",
	"*.tmp",
	"*.swp",
	".tmp-*",
}

// IgnoreList filters paths out of both the local listing and watcher events.
type IgnoreList struct {
	ignore *gitignore.GitIgnore
}

// NewIgnoreList compiles the default rules plus any patterns found in the
// tree's .refsyncignore file.
func NewIgnoreList(rootDir string) *IgnoreList {
	lines := make([]string, 0, len(defaultIgnoreLines))
	lines = append(lines, defaultIgnoreLines...)

	if data, err := os.ReadFile(filepath.Join(rootDir, ignoreFileName)); err == nil {
		lines = append(lines, strings.Split(string(data), "\n")...)
	}

	return &IgnoreList{ignore: gitignore.CompileIgnoreLines(lines...)}
}

func (l *IgnoreList) ShouldIgnore(relPath string) bool {
	return l.ignore.MatchesPath(relPath)
}
