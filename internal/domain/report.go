package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusDone    = "done"
	StatusAborted = "aborted"
	StatusFailed  = "failed"
)

const (
	ErrCodeNotFound          = "not_found"
	ErrCodeLookupFailed      = "lookup_failed"
	ErrCodeParseFailed       = "parse_failed"
	ErrCodeSubmitFailed      = "submit_failed"
	ErrCodePicturesExhausted = "pictures_exhausted"
	ErrCodeConfigInvalid     = "config_invalid"
	ErrCodeConfigNotFound    = "config_not_found"
	ErrCodeUnexpected        = "unexpected"
)

// RunReport 是一次运行（单次或交互循环）的对外输出结构。
type RunReport struct {
	RunID string `json:"run_id"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Done    int `json:"done"`
	Aborted int `json:"aborted"`
	Failed  int `json:"failed"`
}

// ItemResult 记录一件藏品的处理结果。
type ItemResult struct {
	Seq int    `json:"seq"`
	Key string `json:"key"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	// States 是状态机经过的状态序列（用于追溯中断位置）。
	States []string `json:"states"`

	Name     string          `json:"name"`
	Sources  []string        `json:"sources"`
	Skipped  []string        `json:"skipped"`
	Attempts []SourceAttempt `json:"attempts"`

	ConceptSaved    string   `json:"concept_saved"`
	ConceptReused   bool     `json:"concept_reused"`
	ReleaseSaved    string   `json:"release_saved"`
	ReleaseReused   bool     `json:"release_reused"`
	OccurrenceSaved string   `json:"occurrence_saved"`
	Pictures        []string `json:"pictures"`
}

// SourceAttempt 记录一次来源抓取尝试（重试会产生多条）。
type SourceAttempt struct {
	Source   string `json:"source"`
	Stage    string `json:"stage"` // "lookup" / "parse" / "ok" / "skip"
	ErrorMsg string `json:"error_msg,omitempty"`
}

// Finalize 统一时间为 UTC，按 seq 稳定排序，并重新计算 summary。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool { return r.Items[i].Seq < r.Items[j].Seq })

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusDone:
			s.Done++
		case StatusAborted:
			s.Aborted++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// OK 表示所有条目都完成。
func (r RunReport) OK() bool {
	return r.Summary.Aborted == 0 && r.Summary.Failed == 0
}

func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
