package gitapi

const (
	ModeFile = "100644"
	TypeBlob = "blob"
)

// TreeEntry is one blob entry of a remote tree snapshot.
type TreeEntry struct {
	SHA  string
	Mode string
	Type string
	Size int64
}

// TreeSnapshot is the remote side of one sync cycle: the branch head, the
// root tree it points at, and every blob reachable from it. It is replaced
// wholesale each cycle, never patched.
type TreeSnapshot struct {
	HeadSHA     string
	RootTreeSHA string
	Entries     map[string]TreeEntry
}

// Empty reports whether the remote repository has no history yet.
func (s *TreeSnapshot) Empty() bool {
	return s.HeadSHA == ""
}

// TreeEntrySpec describes one entry of a tree-create call. A nil SHA marks
// the path for deletion and must serialize as an explicit JSON null.
type TreeEntrySpec struct {
	Path string  `json:"path"`
	Mode string  `json:"mode"`
	Type string  `json:"type"`
	SHA  *string `json:"sha"`
}

type createTreeRequest struct {
	BaseTree string          `json:"base_tree,omitempty"`
	Tree     []TreeEntrySpec `json:"tree"`
}

type treeEntryResponse struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
}

type treeResponse struct {
	SHA       string              `json:"sha"`
	Tree      []treeEntryResponse `json:"tree"`
	Truncated bool                `json:"truncated"`
}
