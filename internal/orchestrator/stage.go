// Package orchestrator coordinates deal arrival through matching and
// recording: dedupe/upsert, candidate signal lookup, pure evaluation, and
// idempotent match recording, with retry on transient store failures.
//
// Pipeline per deal-arrival event:
//
//	RECEIVED ──► RESOLVED ──► CANDIDATES_LOADED ──► MATCHED ──► RECORDED ──► DONE
//
// Stages only ever advance; a failed event reports the stage it failed at.
package orchestrator

// Stage identifies how far a deal-arrival event has progressed.
type Stage string

const (
	StageReceived         Stage = "RECEIVED"
	StageResolved         Stage = "RESOLVED"
	StageCandidatesLoaded Stage = "CANDIDATES_LOADED"
	StageMatched          Stage = "MATCHED"
	StageRecorded         Stage = "RECORDED"
	StageDone             Stage = "DONE"
)

// pipeline is the fixed stage order.
var pipeline = []Stage{
	StageReceived,
	StageResolved,
	StageCandidatesLoaded,
	StageMatched,
	StageRecorded,
	StageDone,
}

// Next returns the stage after s. ok is false when s is DONE or unknown.
func (s Stage) Next() (next Stage, ok bool) {
	for i, p := range pipeline {
		if p == s && i+1 < len(pipeline) {
			return pipeline[i+1], true
		}
	}
	return "", false
}

// Reached reports whether s is at or past target in the pipeline.
func (s Stage) Reached(target Stage) bool {
	return stageIndex(s) >= stageIndex(target)
}

func stageIndex(s Stage) int {
	for i, p := range pipeline {
		if p == s {
			return i
		}
	}
	return -1
}
