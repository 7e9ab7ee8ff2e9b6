package locks

import "time"

// Policy is an explicit retry table: Delays[i] is the pause taken before
// attempt i+2, so a policy allows len(Delays)+1 attempts in total.
type Policy struct {
	Delays []time.Duration
}

// Default retry shape: ten attempts, pauses growing from 10ms to 100ms
const (
	DefaultAttempts     = 10
	DefaultInitialDelay = 10 * time.Millisecond
	DefaultMaxDelay     = 100 * time.Millisecond
)

// DefaultPolicy returns the ten-attempt linear table
func DefaultPolicy() Policy {
	return LinearPolicy(DefaultAttempts, DefaultInitialDelay, DefaultMaxDelay)
}

// LinearPolicy builds a table of attempts-1 delays growing linearly from
// initial to max. attempts below 1 is treated as 1 (no retry).
func LinearPolicy(attempts int, initial, max time.Duration) Policy {
	if attempts < 1 {
		attempts = 1
	}
	if max < initial {
		max = initial
	}
	n := attempts - 1
	delays := make([]time.Duration, n)
	for i := range delays {
		if n == 1 {
			delays[i] = initial
			continue
		}
		delays[i] = initial + (max-initial)*time.Duration(i)/time.Duration(n-1)
	}
	return Policy{Delays: delays}
}

// Attempts is the total number of tries the table allows
func (p Policy) Attempts() int {
	return len(p.Delays) + 1
}

// Budget is the total time spent sleeping when every attempt fails
func (p Policy) Budget() time.Duration {
	var total time.Duration
	for _, d := range p.Delays {
		total += d
	}
	return total
}
