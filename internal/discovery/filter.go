package discovery

import (
	"github.com/expr-lang/expr/vm"

	"github.com/pmcore/pmcore/internal/option"
)

// passesFilter evaluates a candidate-allowlist program compiled by
// internal/option against one candidate.
func passesFilter(program *vm.Program, address string, port int) (bool, error) {
	return option.EvalCandidateFilter(program, address, port)
}
