package metrics

// Counter is the minimal counter surface the trading core needs; the
// prometheus implementation is optional and wired at startup.
type Counter interface {
	Inc()
	Add(delta float64)
}

type Metrics struct {
	RoundsCompleted     Counter
	RoundsRolledBack    Counter
	RoundsFailed        Counter
	RoundsSkipped       Counter
	LegsPlaced          Counter
	LegsFailed          Counter
	CompensationsFailed Counter
	WalletsBanned       Counter
}

type nopCounter struct{}

func (nopCounter) Inc()        {}
func (nopCounter) Add(float64) {}

func NewNoop() *Metrics {
	return &Metrics{
		RoundsCompleted:     nopCounter{},
		RoundsRolledBack:    nopCounter{},
		RoundsFailed:        nopCounter{},
		RoundsSkipped:       nopCounter{},
		LegsPlaced:          nopCounter{},
		LegsFailed:          nopCounter{},
		CompensationsFailed: nopCounter{},
		WalletsBanned:       nopCounter{},
	}
}
