package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/swdunlop/skeleton-go/skeleton"
	"github.com/swdunlop/skeleton-go/skeleton/esbuild"
	"github.com/swdunlop/zugzug-go"
	"github.com/swdunlop/zugzug-go/zug/parser"
)

func init() {
	tasks = append(tasks, zugzug.Tasks{
		{Name: "profile", Use: "Prints the configuration selected by SKELETON_ENV as JSON", Fn: runProfile, Parser: parser.New(
			parser.String(&skeletonEnv, "env", "e", "The profile to use, overriding SKELETON_ENV"),
			parser.String(&skeletonRoot, "root", "r", "The project directory, overriding SKELETON_ROOT"),
		), Settings: projectSettings},
		{Name: "options", Use: "Prints the esbuild options for the selected configuration as JSON", Fn: runOptions, Parser: parser.New(
			parser.String(&skeletonEnv, "env", "e", "The profile to use, overriding SKELETON_ENV"),
			parser.String(&skeletonRoot, "root", "r", "The project directory, overriding SKELETON_ROOT"),
		), Settings: projectSettings},
	}...)
}

// selectedEnv returns SKELETON_ENV, or "development" when it is unset.
func selectedEnv() string {
	if skeletonEnv == `` {
		return string(skeleton.Development)
	}
	return skeletonEnv
}

func selectedConfig() *skeleton.Config {
	root := skeletonRoot
	if root == `` {
		root = `.`
	}
	return skeleton.Load(selectedEnv(), root)
}

func runProfile(ctx context.Context) error {
	return printJSON(selectedConfig())
}

func runOptions(ctx context.Context) error {
	options, err := esbuild.Options(selectedConfig())
	if err != nil {
		return err
	}
	// plugins hold functions, which JSON cannot encode
	options.Plugins = nil
	return printJSON(options)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent(``, `  `)
	return enc.Encode(v)
}
