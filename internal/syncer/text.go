package syncer

import (
	"path/filepath"
	"strings"

	"github.com/refsync/refsync/internal/gitapi"
)

// textExtensions is the allow-list deciding which paths upload as plain
// text. This is an extension heuristic, not content inspection: a file
// outside the list is treated as binary even when its bytes are valid text.
var textExtensions = map[string]struct{}{
	".md": {}, ".markdown": {}, ".txt": {}, ".text": {},
	".json": {}, ".yaml": {}, ".yml": {}, ".toml": {}, ".ini": {}, ".cfg": {},
	".csv": {}, ".tsv": {}, ".xml": {}, ".svg": {}, ".html": {}, ".htm": {},
	".css": {}, ".js": {}, ".ts": {}, ".sh": {}, ".py": {}, ".go": {},
}

func blobEncodingFor(path string) gitapi.BlobEncoding {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := textExtensions[ext]; ok {
		return gitapi.EncodingUTF8
	}
	return gitapi.EncodingBase64
}
