package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger to provide logged dice rolling.
// All rolls are logged at debug level with the die size and result.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Intn returns a random int in [0, n), logged at debug level.
//
// Precondition: n > 0.
func (r *Roller) Intn(n int) int {
	v := r.src.Intn(n)
	r.logger.Debug("dice roll",
		zap.Int("sides", n),
		zap.Int("result", v+1),
	)
	return v
}

// D20 rolls one twenty-sided die.
//
// Postcondition: Returns a value in [1, 20].
func (r *Roller) D20() int {
	return r.Intn(20) + 1
}
