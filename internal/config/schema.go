// SPDX-License-Identifier: MPL-2.0

package config

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// Validate unifies the merged store with the embedded #Bootstrap schema.
// A violation is returned as a *LoadError naming the merged layer.
func (c *Cascade) Validate() error {
	tree, err := c.Tree()
	if err != nil {
		return &LoadError{Layer: "merged", Err: err}
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	data := ctx.Encode(tree)
	if data.Err() != nil {
		return &LoadError{Layer: "merged", Err: data.Err()}
	}

	unified := schemaValue.LookupPath(cue.ParsePath("#Bootstrap")).Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &LoadError{Layer: "merged", Err: formatSchemaError(err)}
	}
	return nil
}

// Tree returns the merged store as nested maps.
func (c *Cascade) Tree() (map[string]any, error) {
	root := make(map[string]any)
	for _, key := range c.merged.keys {
		segs := strings.Split(key, ".")
		node := root
		for i, seg := range segs[:len(segs)-1] {
			next, exists := node[seg]
			if !exists {
				child := make(map[string]any)
				node[seg] = child
				node = child
				continue
			}
			child, ok := next.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %q is a value and a table", ErrKeyConflict, strings.Join(segs[:i+1], "."))
			}
			node = child
		}
		leaf := segs[len(segs)-1]
		if _, isTable := node[leaf].(map[string]any); isTable {
			return nil, fmt.Errorf("%w: %q is a value and a table", ErrKeyConflict, key)
		}
		node[leaf] = c.merged.values[key]
	}
	return root, nil
}

func formatSchemaError(err error) error {
	var lines []string
	for _, e := range cueerrors.Errors(err) {
		path := strings.Join(cueerrors.Path(e), ".")
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if path != "" {
			msg = path + ": " + msg
		}
		lines = append(lines, msg)
	}
	if len(lines) == 0 {
		return err
	}
	return fmt.Errorf("schema violation: %s", strings.Join(lines, "; "))
}
