// Package sim provides the small set of simulation primitives shared by the
// cache models: cycle time, hooks, and ID generation.
package sim

// Cycle is a point in simulated time, counted in clock cycles.
type Cycle uint64

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() Cycle
}
