package bundler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/buildconf/internal/buildconf"
)

const defaultPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
</body>
</html>
`

// PageData is what page templates render with when injection is off.
type PageData struct {
	Title   string
	Mode    buildconf.Mode
	Scripts []string
	Styles  []string
}

var pageFuncs = template.FuncMap{
	"json": toJSON,
}

// htmlStep writes the page for the build once it has finished. The
// template is plain HTML and the stylesheet and script tags of every entry
// are injected before </head> and </body>. With inject set to false the
// template is a Go html/template rendered with PageData instead, and places
// the tags itself.
func htmlStep(p buildconf.Plugin) (*step, error) {
	templatePath := stringOption(p, "template", "")
	filename := stringOption(p, "filename", "index.html")
	title := stringOption(p, "title", "App")
	inject := true
	if v, ok := p.Options["inject"].(bool); ok {
		inject = v
	}

	return &step{
		name: p.Name,
		after: func(ctx context.Context, out *Output) error {
			data, err := pageData(out, title)
			if err != nil {
				return err
			}

			page, err := renderPage(ctx, templatePath, inject, data)
			if err != nil {
				return err
			}

			target := filepath.Join(out.OutDir, filename)
			if err := writeFile(target, page); err != nil {
				return err
			}

			zerolog.Ctx(ctx).Info().Str("file", target).Strs("scripts", data.Scripts).Msg("Rendered page")
			return nil
		},
	}, nil
}

func renderPage(ctx context.Context, templatePath string, inject bool, data *PageData) ([]byte, error) {
	raw, err := readPageTemplate(ctx, templatePath)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return injectTags(fmt.Sprintf(defaultPage, html.EscapeString(data.Title)), data), nil
	}
	if inject {
		return injectTags(string(raw), data), nil
	}

	tmpl, err := template.New(filepath.Base(templatePath)).Funcs(pageFuncs).Parse(string(raw))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}
	return buf.Bytes(), nil
}

// readPageTemplate returns nil when there is no template to read.
func readPageTemplate(ctx context.Context, path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		zerolog.Ctx(ctx).Warn().Str("template", path).Msg("Page template missing, using default")
		return nil, nil
	}
	return raw, err
}

// injectTags adds stylesheet links before </head> and scripts before
// </body>. Missing closing tags put the tags at the end of the page.
func injectTags(page string, data *PageData) []byte {
	var styles, scripts strings.Builder
	for _, s := range data.Styles {
		fmt.Fprintf(&styles, "<link rel=\"stylesheet\" href=\"%s\">\n", html.EscapeString(s))
	}
	for _, s := range data.Scripts {
		fmt.Fprintf(&scripts, "<script type=\"module\" src=\"%s\"></script>\n", html.EscapeString(s))
	}

	head, body := styles.String(), scripts.String()
	if lastIndexFold(page, "</head>") < 0 {
		head, body = "", head+body
	}
	page = insertBefore(page, "</head>", head)
	page = insertBefore(page, "</body>", body)
	return []byte(page)
}

func insertBefore(page, tag, text string) string {
	if text == "" {
		return page
	}
	i := lastIndexFold(page, tag)
	if i < 0 {
		return page + text
	}
	return page[:i] + text + page[i:]
}

// lastIndexFold is strings.LastIndex ignoring ASCII case.
func lastIndexFold(s, substr string) int {
	for i := len(s) - len(substr); i >= 0; i-- {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}

// pageData collects script and style URLs for every entry, in entry name
// order, each listed once.
func pageData(out *Output, title string) (*PageData, error) {
	data := &PageData{Title: title, Mode: out.Config.Mode}
	if out.Metadata == nil {
		return nil, errors.New("build produced no metadata")
	}

	names := make([]string, 0, len(out.Config.Entry))
	for name := range out.Config.Entry {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := map[string]bool{}
	for _, name := range names {
		items := out.Config.Entry[name]
		if len(items) == 0 {
			continue
		}

		scripts, css, err := out.Metadata.Scripts(items[len(items)-1])
		if err != nil {
			return nil, err
		}
		for _, s := range scripts {
			if u := out.URL(s); !seen[u] {
				seen[u] = true
				data.Scripts = append(data.Scripts, u)
			}
		}
		if css != "" {
			if u := out.URL(css); !seen[u] {
				seen[u] = true
				data.Styles = append(data.Styles, u)
			}
		}
	}

	return data, nil
}

func toJSON(value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("json: %w", err)
	}
	return string(raw), nil
}
