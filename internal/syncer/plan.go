package syncer

// uploadItem is one pending blob upload. Content is nil until execution
// reads it from disk, except for conflict resolutions, which carry the
// resolved bytes directly.
type uploadItem struct {
	Path    string
	Content []byte
}

// Plan maps every classified path to exactly one action for this cycle.
// Conflict candidates are kept separate: their execution is deferred until
// the resolution surface returns.
type Plan struct {
	Uploads      map[string]*uploadItem
	Downloads    map[string]string // path -> remote blob sha
	DeleteLocal  []string
	DeleteRemote []string
	Conflicts    []ConflictFile
	// Adopted paths need no transfer: the remote sha is recorded as-is
	// (identical content under a different recorded hash).
	Adopted   map[string]string // path -> remote blob sha
	Purge     []string
	Unchanged int
}

func newPlan() *Plan {
	return &Plan{
		Uploads:   make(map[string]*uploadItem),
		Downloads: make(map[string]string),
		Adopted:   make(map[string]string),
	}
}

// Mutates reports whether executing the plan would touch the remote store.
func (p *Plan) Mutates() bool {
	return len(p.Uploads) > 0 || len(p.DeleteRemote) > 0
}

// Empty reports whether the plan changes anything anywhere.
func (p *Plan) Empty() bool {
	return !p.Mutates() && len(p.Downloads) == 0 && len(p.DeleteLocal) == 0 &&
		len(p.Conflicts) == 0 && len(p.Adopted) == 0 && len(p.Purge) == 0
}
