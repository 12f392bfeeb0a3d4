// Command kakectl is the thin CLI front-end described by spec.md §6: its
// arguments are target paths, it builds each in turn against a small demo
// project, and exits 0 on success or non-zero on the first failure.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"kake/internal/examplerules"
	"kake/internal/hostconfig"
	"kake/internal/kerr"
	"kake/internal/rules"
	"kake/pkg/kake"
)

const (
	exitOK       = 0
	exitUsage    = 2
	exitBuildErr = 1
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: kakectl <target> [target...]")
		return exitUsage
	}

	cfg, err := hostconfig.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, "kakectl: loading config:", err)
		return exitBuildErr
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	engine := kake.New(cfg, logger)
	registerDemoProject(engine, cfg)

	ctx := context.Background()
	for _, target := range args {
		if err := engine.Build(ctx, target, kake.BuildContext{}); err != nil {
			reportFailure(target, err)
			return exitBuildErr
		}
		fmt.Println(target)
	}
	return exitOK
}

// registerDemoProject wires up the example rules shipped alongside kakectl
// so the binary is runnable out of the box against a project laid out like
// internal/examplerules' tests: a canonical English string file translated
// per-language, and a stylesheet assembled from @import'd partials.
func registerDemoProject(engine *kake.Engine, cfg hostconfig.Config) {
	translation := &examplerules.TranslationRule{
		EnglishSource: "src/strings.en.txt",
		Ver:           1,
	}
	_ = engine.RegisterRule(&rules.Rule{
		Label:               "translate",
		OutputPattern:       "genfiles/{lang}/hello.txt",
		StaticInputPatterns: []string{"src/strings.en.txt"},
		Capability:          translation,
	})

	css := &examplerules.CSSImportRule{ProjectRoot: cfg.ProjectRoot, Ver: 1}
	_ = engine.RegisterRule(&rules.Rule{
		Label:               "css",
		OutputPattern:       "genfiles/site.css",
		StaticInputPatterns: []string{"src/site.css"},
		Capability:          &rules.CachedFile{Inner: css, Ver: 1},
	})
}

func reportFailure(target string, err error) {
	var buildFailed *kerr.BuildFailedError
	if errors.As(err, &buildFailed) {
		fmt.Fprintf(os.Stderr, "kakectl: %s: build failed: %s\n", target, buildFailed.Stderr)
		return
	}
	fmt.Fprintf(os.Stderr, "kakectl: %s: %s\n", target, err)
}
