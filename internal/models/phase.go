package models

import (
	"encoding/json"
	"fmt"
)

// Phase is the lifecycle stage of a measurement run. The engine may report
// codes outside the known set; those are kept verbatim as Other.
type Phase struct {
	code int
}

// Known phase codes.
var (
	PhaseIdle       = Phase{code: -1}
	PhaseNotStarted = Phase{code: 0}
	PhaseDownload   = Phase{code: 1}
	PhasePing       = Phase{code: 2}
	PhaseUpload     = Phase{code: 3}
	PhaseFinished   = Phase{code: 4}
	PhaseAborted    = Phase{code: 5}
)

var phaseNames = map[int]string{
	-1: "idle",
	0:  "not-started",
	1:  "download",
	2:  "ping",
	3:  "upload",
	4:  "finished",
	5:  "aborted",
}

// PhaseFromCode maps an engine code onto a Phase.
func PhaseFromCode(code int) Phase {
	return Phase{code: code}
}

// Code returns the numeric phase code.
func (p Phase) Code() int { return p.code }

// Known reports whether the code is one of the named phases.
func (p Phase) Known() bool {
	_, ok := phaseNames[p.code]
	return ok
}

// Active reports whether a rate is being measured in this phase.
func (p Phase) Active() bool {
	return p == PhaseDownload || p == PhaseUpload
}

// Terminal reports whether the run has ended, normally or not.
func (p Phase) Terminal() bool {
	return p == PhaseFinished || p == PhaseAborted
}

func (p Phase) String() string {
	if name, ok := phaseNames[p.code]; ok {
		return name
	}
	return fmt.Sprintf("other(%d)", p.code)
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.code)
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var code int
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("phase: %w", err)
	}
	p.code = code
	return nil
}
