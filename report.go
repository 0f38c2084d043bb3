package notesite

import (
	"time"

	"github.com/alnah/go-notesite/internal/pipeline"
)

// FileKind says what a build did with a source file.
type FileKind int

// File kinds.
const (
	KindPage    FileKind = iota // note converted to a page
	KindDraft                   // note skipped because it is a draft
	KindAsset                   // file copied unchanged
	KindRemoved                 // source gone, outputs deleted
)

// String returns the kind name used in logs.
func (k FileKind) String() string {
	switch k {
	case KindPage:
		return "page"
	case KindDraft:
		return "draft"
	case KindAsset:
		return "asset"
	case KindRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// FileResult is the outcome for one source file.
type FileResult struct {
	Source   string // slash path relative to the input directory
	Kind     FileKind
	Output   string // written file, if any
	PDF      string // printed PDF, if enabled
	Title    string
	Messages []pipeline.Message
	Err      error
}

// Report summarizes a Build or Rebuild.
type Report struct {
	Results  []FileResult // sorted by Source
	Duration time.Duration
}

// Pages returns how many pages were written.
func (r *Report) Pages() int { return r.count(KindPage) }

// Drafts returns how many notes were skipped as drafts.
func (r *Report) Drafts() int { return r.count(KindDraft) }

// Assets returns how many files were copied or found current.
func (r *Report) Assets() int { return r.count(KindAsset) }

func (r *Report) count(kind FileKind) int {
	n := 0
	for _, res := range r.Results {
		if res.Kind == kind && res.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the results that carry an error.
func (r *Report) Failed() []FileResult {
	var out []FileResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Messages returns every diagnostic, in source order.
func (r *Report) Messages() []pipeline.Message {
	var out []pipeline.Message
	for _, res := range r.Results {
		out = append(out, res.Messages...)
	}
	return out
}
