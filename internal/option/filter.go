package option

// filter.go hosts the candidate-allowlist expression compiler used by
// §4.H discovery. Kept in the option layer rather than
// internal/discovery or the derived-metric engine (pkg/expr) so the
// engine's own node-tag semantics are never subcontracted to a
// generic expression library — grounded on the teacher's
// internal/tagger/classifyJob.go use of expr-lang/expr.

import (
	"net"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// CandidateEnv is the environment a compiled candidate filter runs
// against: the fields a discovered (address, port) candidate exposes.
type CandidateEnv struct {
	Address string `expr:"address"`
	Port    int    `expr:"port"`
	Family  string `expr:"family"`
}

// CompileCandidateFilter compiles a boolean expr-lang expression, e.g.
// "port >= 44321 && family == \"inet6\"", into a reusable program.
func CompileCandidateFilter(source string) (*vm.Program, error) {
	return expr.Compile(source, expr.Env(CandidateEnv{}), expr.AsBool())
}

// EvalCandidateFilter runs a compiled filter against one candidate. A
// nil program always passes (no filter configured).
func EvalCandidateFilter(program *vm.Program, address string, port int) (bool, error) {
	if program == nil {
		return true, nil
	}
	env := CandidateEnv{Address: address, Port: port, Family: AddressFamily(address)}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	ok, _ := out.(bool)
	return ok, nil
}

// AddressFamily classifies an address as "inet4", "inet6", or
// "unknown".
func AddressFamily(address string) string {
	ip := net.ParseIP(address)
	if ip == nil {
		return "unknown"
	}
	if ip.To4() != nil {
		return "inet4"
	}
	return "inet6"
}
