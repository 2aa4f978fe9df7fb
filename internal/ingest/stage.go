package ingest

type Stage string

const (
	StageReceived      Stage = "received"
	StageTypeValidated Stage = "type_validated"
	StageStored        Stage = "stored"
	StageExtracted     Stage = "extracted"
	StageClassified    Stage = "classified"
	StageIndexed       Stage = "indexed"
	StagePersisted     Stage = "persisted"
)

type StageStatus string

const (
	StatusSuccess  StageStatus = "success"
	StatusDegraded StageStatus = "degraded"
	StatusSkipped  StageStatus = "skipped"
	StatusFailed   StageStatus = "failed"
)

type StageResult struct {
	Stage  Stage       `json:"stage"`
	Status StageStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
}

// Report records how each stage of one upload ended, in execution order.
type Report struct {
	Stages []StageResult `json:"stages"`
}

func (r *Report) add(stage Stage, status StageStatus, detail string) {
	r.Stages = append(r.Stages, StageResult{Stage: stage, Status: status, Detail: detail})
}

func (r *Report) Status(stage Stage) (StageStatus, bool) {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s.Status, true
		}
	}
	return "", false
}

// Degraded reports whether any stage finished below success.
func (r *Report) Degraded() bool {
	for _, s := range r.Stages {
		if s.Status == StatusDegraded || s.Status == StatusFailed {
			return true
		}
	}
	return false
}
