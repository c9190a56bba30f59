package domain

// SamplesPerSecond is the path cadence: one sample every 100ms.
const SamplesPerSecond = 10

// SampleIntervalMs is the timestamp step between two consecutive samples.
const SampleIntervalMs = 1000 / SamplesPerSecond

// PricePoint is one generated price sample.
type PricePoint struct {
	TimestampMs int64
	Price       float64
}

// ActionKind is the ledger mutation an evaluator asks for.
type ActionKind string

// Action kinds.
const (
	ActionClosePosition ActionKind = "close_position"
	ActionTakeProfit    ActionKind = "take_profit"
	ActionAdjustStop    ActionKind = "adjust_stop"
	ActionEnterPosition ActionKind = "enter_position"
)

// Action detail keys.
const (
	DetailMarginLevel  = "marginLevel"
	DetailDrop         = "drop"
	DetailRise         = "rise"
	DetailPnL          = "pnl"
	DetailChange       = "change"
	DetailNewStopLevel = "newStopLevel"
	DetailRSI          = "rsi"
	DetailDeviation    = "deviation"
	DetailEntryPrice   = "entryPrice"
)

// Action is an evaluator decision with free-form numeric details.
type Action struct {
	Kind    ActionKind
	Details map[string]float64
}

// Clone returns a deep copy of the action.
func (a *Action) Clone() *Action {
	if a == nil {
		return nil
	}
	details := make(map[string]float64, len(a.Details))
	for k, v := range a.Details {
		details[k] = v
	}
	return &Action{Kind: a.Kind, Details: details}
}

// SimulationResult is one persisted snapshot of a run.
// The series for a simulation is ordered by TimestampMs, Seq.
type SimulationResult struct {
	ResultID     string
	SimulationID string
	Seq          int // sample index within the run

	TimestampMs int64
	Price       float64

	ActionKind    *ActionKind
	ActionDetails map[string]float64

	Balance       float64
	PositionSize  float64
	UnrealizedPnL float64
	MarginLevel   float64
	SuccessRate   float64 // running success rate in percent
	ActionCount   int     // cumulative actions applied so far
}

// HasAction reports whether the snapshot carries an action.
func (r *SimulationResult) HasAction() bool {
	return r.ActionKind != nil && *r.ActionKind != ""
}

// Clone returns a deep copy of the result.
func (r *SimulationResult) Clone() *SimulationResult {
	if r == nil {
		return nil
	}
	c := *r
	if r.ActionKind != nil {
		kind := *r.ActionKind
		c.ActionKind = &kind
	}
	if r.ActionDetails != nil {
		c.ActionDetails = make(map[string]float64, len(r.ActionDetails))
		for k, v := range r.ActionDetails {
			c.ActionDetails[k] = v
		}
	}
	return &c
}

// ResultSeries is the charting view of a run's snapshots.
type ResultSeries struct {
	SimulationID string
	Results      []*SimulationResult
	Prices       []PricePoint
	PnL          []SeriesPoint
	Balance      []SeriesPoint
	Actions      []*SimulationResult // sparse sub-series carrying an action
}

// SeriesPoint is a generic (timestamp, value) chart point.
type SeriesPoint struct {
	TimestampMs int64
	Value       float64
}

// NewResultSeries derives chart series from ordered snapshots.
func NewResultSeries(simulationID string, results []*SimulationResult) *ResultSeries {
	s := &ResultSeries{
		SimulationID: simulationID,
		Results:      results,
		Prices:       make([]PricePoint, 0, len(results)),
		PnL:          make([]SeriesPoint, 0, len(results)),
		Balance:      make([]SeriesPoint, 0, len(results)),
	}
	for _, r := range results {
		s.Prices = append(s.Prices, PricePoint{TimestampMs: r.TimestampMs, Price: r.Price})
		s.PnL = append(s.PnL, SeriesPoint{TimestampMs: r.TimestampMs, Value: r.UnrealizedPnL})
		s.Balance = append(s.Balance, SeriesPoint{TimestampMs: r.TimestampMs, Value: r.Balance})
		if r.HasAction() {
			s.Actions = append(s.Actions, r)
		}
	}
	return s
}
