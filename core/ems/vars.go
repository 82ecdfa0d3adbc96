package ems

// VarIndex records every decision variable's index into the built
// milp.Problem, keyed the way the plan extractor (core/plan) needs to read
// a milp.Solution back into a typed Plan.
type VarIndex struct {
	// N is the horizon slot count.
	N int

	PImp  []int // len N
	PExp  []int // len N
	OnImp []int // len N
	VImp  []int // len N

	// AllowImp[t] is true when import is not in a forbidden window at slot t.
	AllowImp []bool

	// Per-inverter, keyed by Inverter.ID. Each slice has length N.
	PPv    map[string][]int
	PAcNet map[string][]int
	Curt   map[string][]int // nil entry (or absent) when curtailment mode is none

	// Per-battery (one entry per inverter with a battery), keyed by
	// Inverter.ID. PBc/PBd/MB/ExportOk have length N; EB has length N+1.
	PBc      map[string][]int
	PBd      map[string][]int
	EB       map[string][]int
	MB       map[string][]int
	ExportOk map[string][]int

	// TerminalShortfall holds the adaptive-mode terminal-SoC slack variable
	// per battery; absent for batteries in hard mode.
	TerminalShortfall map[string]int

	// Per EV, keyed by ControlledEvLoad.ID. PEv/REv have length N (REv[0]
	// is pinned to zero); EEv has length N+1; OnEv is present only when
	// MinPowerKW>0.
	PEv  map[string][]int
	EEv  map[string][]int
	REv  map[string][]int
	OnEv map[string][]int
	AEv  map[string]int // single slot-0 anchor variable per EV

	// SegVars[e] holds one variable index per SoCIncentive band for EV e.
	SegVars map[string][]int

	// AlignedImportPrice/AlignedExportPrice/AlignedLoad are the forecast
	// series (with slot-0 override applied) the objective was built
	// against; the plan extractor reuses them instead of recomputing.
	AlignedImportPrice []float64
	AlignedExportPrice []float64
	AlignedLoad        []float64
}

func newVarIndex(n int) *VarIndex {
	return &VarIndex{
		N:                 n,
		PPv:               map[string][]int{},
		PAcNet:            map[string][]int{},
		Curt:              map[string][]int{},
		PBc:               map[string][]int{},
		PBd:               map[string][]int{},
		EB:                map[string][]int{},
		MB:                map[string][]int{},
		ExportOk:          map[string][]int{},
		TerminalShortfall: map[string]int{},
		PEv:               map[string][]int{},
		EEv:               map[string][]int{},
		REv:               map[string][]int{},
		OnEv:              map[string][]int{},
		AEv:               map[string]int{},
		SegVars:           map[string][]int{},
	}
}
