package rules

import (
	"context"
	"fmt"
	"strings"

	"kake/internal/buildctx"
)

// SubprocessCaller runs argv to completion, turning a non-zero exit into a
// build-failure error tagged with label and the captured stderr.
// internal/build.NewSubprocessCaller constructs one bound to a working
// directory; an ExecRule receives it through its Caller field.
type SubprocessCaller func(ctx context.Context, label string, argv []string) error

// ExecRule is the standard compile rule: it shells out to a subprocess
// templated from the output path and expanded input list.
//
// ArgvTemplate tokens may reference "{output}", "{inputs}" (space-joined),
// or "{input0}".."{inputN}" for individual positional inputs.
type ExecRule struct {
	Label        string
	ArgvTemplate []string
	Caller       SubprocessCaller
	Ver          int
}

func (e *ExecRule) Build(ctx context.Context, output string, inputs []string, changed []string, bc buildctx.Context) error {
	argv := make([]string, len(e.ArgvTemplate))
	for i, tok := range e.ArgvTemplate {
		tok = strings.ReplaceAll(tok, "{output}", output)
		tok = strings.ReplaceAll(tok, "{inputs}", strings.Join(inputs, " "))
		for j, in := range inputs {
			tok = strings.ReplaceAll(tok, fmt.Sprintf("{input%d}", j), in)
		}
		argv[i] = tok
	}
	return e.Caller(ctx, e.Label, argv)
}

// Version implements Versioner.
func (e *ExecRule) Version() int { return e.Ver }
