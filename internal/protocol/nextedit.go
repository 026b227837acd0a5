package protocol

import (
	"encoding/json"
	"math"
	"strings"
)

const maxLocationCandidates = 6

type LineRange struct {
	Start int `json:"start"`
	Stop  int `json:"stop"`
}

type Location struct {
	Path  string    `json:"path"`
	Range LineRange `json:"range"`
}

type DebugInfo struct {
	Source string `json:"source"`
}

// Candidate is one suggested next-edit location.
type Candidate struct {
	Item      Location  `json:"item"`
	Score     float64   `json:"score"`
	DebugInfo DebugInfo `json:"debug_info"`
}

// NextEditLocationResult answers /next_edit_loc.
type NextEditLocationResult struct {
	CandidateLocations []Candidate       `json:"candidate_locations"`
	UnknownBlobNames   []string          `json:"unknown_blob_names"`
	CheckpointNotFound bool              `json:"checkpoint_not_found"`
	CriticalErrors     []json.RawMessage `json:"critical_errors"`
}

func NewNextEditLocationResult(candidates []Candidate) NextEditLocationResult {
	if candidates == nil {
		candidates = []Candidate{}
	}
	return NextEditLocationResult{
		CandidateLocations: candidates,
		UnknownBlobNames:   []string{},
		CriticalErrors:     []json.RawMessage{},
	}
}

// PickNextEditLocations turns diagnostics into candidates, capped at
// min(6, num_results) or 1 when num_results is absent. Without a usable
// diagnostic the request path at line 0 is the only candidate.
func PickNextEditLocations(req *Request) []Candidate {
	limit := 1
	if n := req.NumResults; n.Valid && n.Value > 0 {
		limit = min(maxLocationCandidates, int(math.Floor(n.Value)))
	}

	out := make([]Candidate, 0, limit)
	for _, raw := range req.Diagnostics {
		var diag map[string]any
		if err := json.Unmarshal(raw, &diag); err != nil {
			continue
		}

		loc, ok := diagnosticLocation(diag)
		if !ok {
			continue
		}

		out = append(out, Candidate{Item: loc, Score: 1, DebugInfo: DebugInfo{Source: "diagnostic"}})
		if len(out) >= limit {
			break
		}
	}

	if len(out) == 0 {
		if path := strings.TrimSpace(req.Path); path != "" {
			out = append(out, Candidate{
				Item:      Location{Path: path, Range: LineRange{Start: 0, Stop: 0}},
				Score:     1,
				DebugInfo: DebugInfo{Source: "fallback"},
			})
		}
	}

	return out
}

// diagnosticLocation accepts the diagnostic layouts different clients send:
// path, file_path, filePath or item.path for the file, and range, item.range
// or location.range with line numbers in several spellings.
func diagnosticLocation(diag map[string]any) (Location, bool) {
	path := firstString(
		diag["path"],
		diag["file_path"],
		diag["filePath"],
		lookup(diag, "item", "path"),
	)
	if path == "" {
		return Location{}, false
	}

	rng := firstObject(
		diag["range"],
		lookup(diag, "item", "range"),
		lookup(diag, "location", "range"),
	)

	start, ok := lineNumber(firstPresent(
		lookup(rng, "start", "line"),
		rng["start_line"],
		rng["startLine"],
		rng["start"],
	))
	if !ok {
		return Location{}, false
	}

	stop, ok := lineNumber(firstPresent(
		lookup(rng, "end", "line"),
		lookup(rng, "stop", "line"),
		rng["end_line"],
		rng["stopLine"],
		rng["stop"],
	))
	if !ok {
		stop = start
	}

	return Location{Path: path, Range: LineRange{Start: start, Stop: max(start, stop)}}, true
}

// lineNumber floors a line number and clamps non-positive values to 0.
func lineNumber(v any) (int, bool) {
	n, ok := toNumber(v)
	if !ok {
		return 0, false
	}
	if n <= 0 {
		return 0, true
	}
	return int(math.Floor(n)), true
}

func lookup(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[k]
	}
	return cur
}

func firstString(values ...any) string {
	for _, v := range values {
		if s, ok := v.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstObject(values ...any) map[string]any {
	for _, v := range values {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

func firstPresent(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
