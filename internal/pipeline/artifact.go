package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// docID derives the canonical <TICKER>_<KIND>_<YYYYMMDDThhmm> artifact
// identifier, shared between the artifact's filename and its propagated
// vector doc_id.
func docID(ticker, kind string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s", ticker, kind, at.UTC().Format("20060102T1504"))
}

func artifactPath(analysesDir, id string) string {
	return filepath.Join(analysesDir, id+".md")
}

// atomicWriteFile writes content to path via a temporary sibling file
// followed by a rename, so a concurrent reader never observes a partial
// write.
func atomicWriteFile(path, content string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// atomicAppendFile appends content to the file at path by reading its
// current bytes, writing the concatenation to a temporary sibling, and
// renaming over the original — so a concurrent reader of path always sees
// either the pre- or post-append content, never a partial file.
func atomicAppendFile(path, content string) error {
	existing, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return atomicWriteFile(path, string(existing)+content)
}
