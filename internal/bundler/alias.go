package bundler

import (
	"regexp"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// aliasPlugin rewrites imports that start with an alias key ("@/x" or
// "@assets/x") to the aliased directory and lets the engine resolve the
// rewritten path, so extension and index lookup still apply.
func aliasPlugin(alias map[string]string) api.Plugin {
	keys := sortedAliasKeys(alias)

	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	filter := `^(` + strings.Join(quoted, "|") + `)(/.*)?$`

	return api.Plugin{
		Name: "resolve-alias",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: filter},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					target, ok := rewriteAlias(keys, alias, args.Path)
					if !ok {
						return api.OnResolveResult{}, nil
					}

					res := build.Resolve(target, api.ResolveOptions{
						Importer:   args.Importer,
						ResolveDir: args.ResolveDir,
						Kind:       args.Kind,
					})
					if len(res.Errors) > 0 {
						return api.OnResolveResult{Errors: res.Errors}, nil
					}
					return api.OnResolveResult{Path: res.Path, External: res.External, Namespace: res.Namespace}, nil
				})
		},
	}
}

// sortedAliasKeys orders keys longest first so "@assets" is tried before "@".
func sortedAliasKeys(alias map[string]string) []string {
	keys := make([]string, 0, len(alias))
	for k := range alias {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

func rewriteAlias(keys []string, alias map[string]string, importPath string) (string, bool) {
	for _, k := range keys {
		switch {
		case importPath == k:
			return alias[k], true
		case strings.HasPrefix(importPath, k+"/"):
			return alias[k] + importPath[len(k):], true
		}
	}
	return "", false
}
