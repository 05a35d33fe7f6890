package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/qsnake/trilinos-sub010/internal/expr"
)

// LoadDir builds the CUE package in dir into a single value. All .cue
// files in the directory must belong to the same package.
func LoadDir(dir string) (cue.Value, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, &CompileError{Field: "cue", Message: fmt.Sprintf("no CUE instances in %s", dir)}
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, formatCUEError("cue", inst.Err)
	}
	v := cuecontext.New().BuildInstance(inst)
	if err := v.Validate(); err != nil {
		return cue.Value{}, formatCUEError("cue", err)
	}
	return v, nil
}

// CompileDir loads dir and compiles it into dag.
func CompileDir(dir string, dag *expr.DAG) (*Program, error) {
	v, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return Compile(v, dag)
}
