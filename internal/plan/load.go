package plan

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Load reads and compiles a CUE pipeline definition from path. The
// file must define a top-level "pipeline" struct.
func Load(path string) (*Spec, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline definition: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	pipeline := v.LookupPath(cue.ParsePath("pipeline"))
	if !pipeline.Exists() {
		return nil, fmt.Errorf("%s: no top-level pipeline struct", path)
	}
	return Compile(pipeline)
}
