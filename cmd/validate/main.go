// Command validate checks an authored scene set before deployment: every
// scene file must parse and validate, every choice target must resolve,
// and scenes unreachable from the start scene are reported.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pathrpg/engine/pkg/scene"
)

func main() {
	dir := "./data/scenes"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	fmt.Printf("Validating scenes in %s...\n", dir)

	store := scene.NewStore(dir, logger)
	scenes, err := store.LoadAll(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	report, err := scene.CheckGraph(scenes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	for _, id := range report.Unreachable {
		fmt.Printf("warning: scene %q is unreachable from %q\n", id, scene.StartSceneID)
	}

	if !report.OK() {
		fmt.Fprintln(os.Stderr, "Dangling scene references:")
		for _, ref := range report.Dangling {
			fmt.Fprintf(os.Stderr, "  %s\n", ref)
		}
		os.Exit(1)
	}

	fmt.Printf("%d scenes are valid!\n", len(scenes))
}
