package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/marmos91/blobsweep/internal/bytesize"
	"github.com/marmos91/blobsweep/pkg/gc"
)

// passReport renders a PassResult for the terminal: one row per scope in
// table mode, the full result in JSON or YAML mode.
type passReport struct {
	result *gc.PassResult
}

func (r passReport) Headers() []string {
	return []string{"Scope", "Live", "Listed", "Orphans", "Young", "Deleted", "Failed", "Deferred", "Reclaimed", "Status"}
}

func (r passReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.result.Scopes))
	for _, sr := range r.result.Scopes {
		status := "ok"
		if sr.Failed() {
			status = "error: " + sr.Error
		} else if sr.Report.Failed > 0 {
			status = "partial"
		}
		rows = append(rows, []string{
			string(sr.Scope),
			strconv.Itoa(sr.LiveKeys),
			strconv.FormatInt(sr.Listed, 10),
			strconv.FormatInt(sr.Report.Orphans, 10),
			strconv.FormatInt(sr.Young, 10),
			strconv.FormatInt(sr.Report.Deleted, 10),
			strconv.FormatInt(sr.Report.Failed, 10),
			strconv.FormatInt(sr.Report.Deferred, 10),
			bytesize.Human(sr.Report.BytesReclaimed),
			status,
		})
	}
	return rows
}

// Summary returns the pass totals as key/value lines.
func (r passReport) Summary() [][2]string {
	res := r.result
	mode := "delete"
	if res.DryRun {
		mode = "dry run"
	}
	return [][2]string{
		{"Pass", res.ID},
		{"Mode", mode},
		{"Duration", res.Duration().Round(time.Millisecond).String()},
		{"Scopes", strconv.Itoa(res.ScopesProcessed)},
		{"Scope errors", strconv.Itoa(len(res.ScopeErrors))},
		{"Orphans", strconv.FormatInt(res.TotalOrphans, 10)},
		{"Deleted", fmt.Sprintf("%d of %d attempted", res.TotalDeleted, res.TotalAttempted)},
		{"Failed", strconv.FormatInt(res.TotalFailed, 10)},
		{"Reclaimed", bytesize.Human(res.BytesReclaimed)},
	}
}

func (r passReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.result)
}

// MarshalYAML reuses the JSON field names so both formats agree.
func (r passReport) MarshalYAML() (any, error) {
	data, err := json.Marshal(r.result)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
