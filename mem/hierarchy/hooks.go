package hierarchy

import "github.com/sarchlab/cachesim/sim"

// HookPosReqStart marks a request entering the hierarchy. The hook item is the
// request.
var HookPosReqStart = &sim.HookPos{Name: "Hierarchy Req Start"}

// HookPosReqComplete marks a request answered by the hierarchy. The hook item
// is the request and the detail is an AccessDetail.
var HookPosReqComplete = &sim.HookPos{Name: "Hierarchy Req Complete"}

// HookPosMemRead marks a read served by the backing memory. The hook item is
// the address.
var HookPosMemRead = &sim.HookPos{Name: "Hierarchy Mem Read"}

// HookPosMemWrite marks a block written to the backing memory. The hook item
// is the address.
var HookPosMemWrite = &sim.HookPos{Name: "Hierarchy Mem Write"}

// HookPosMaxOutstanding marks a level that stops accepting new misses. The
// hook item is the level's cache.
var HookPosMaxOutstanding = &sim.HookPos{Name: "Hierarchy Max Outstanding"}

// AccessDetail describes how a request was answered.
type AccessDetail struct {
	// Level is the index of the level that answered. It equals the number of
	// levels when the backing memory answered.
	Level int

	// Latency is the number of cycles the access took.
	Latency sim.Cycle
}
