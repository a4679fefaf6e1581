package services

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"gitpress/models"
)

// Frontmatter is the metadata block at the top of an article source file.
// Raw keeps every key as parsed so downstream schema validation sees
// unknown keys verbatim.
type Frontmatter struct {
	Title            string
	Published        bool
	Category         string
	TargetCategories []string
	Topics           []string
	Raw              map[string]any
}

// ParseFrontmatter splits a markdown document into its frontmatter block and
// body. The source must start with a "---" line closed by a second one.
func ParseFrontmatter(markdown string) (*Frontmatter, string, error) {
	normalized := strings.ReplaceAll(markdown, "\r\n", "\n")
	if !strings.HasPrefix(normalized, "---\n") {
		return nil, "", models.NewInvalidFrontmatterError("missing opening delimiter")
	}
	rest := normalized[len("---\n"):]
	block, body, found := strings.Cut(rest, "\n---\n")
	if !found {
		if after, ok := strings.CutSuffix(rest, "\n---"); ok {
			block, body = after, ""
		} else {
			return nil, "", models.NewInvalidFrontmatterError("missing closing delimiter")
		}
	}

	raw := map[string]any{}
	if strings.TrimSpace(block) != "" {
		if err := yaml.Unmarshal([]byte(block), &raw); err != nil {
			return nil, "", models.NewInvalidFrontmatterError(err.Error())
		}
	}

	fm := &Frontmatter{
		Title:            asString(raw["title"]),
		Published:        asBool(raw["published"]),
		Category:         asString(raw["category"]),
		TargetCategories: asStringList(raw["targetCategories"]),
		Topics:           asStringList(raw["topics"]),
		Raw:              raw,
	}
	if fm.Topics == nil {
		fm.Topics = []string{}
	}
	for i, topic := range fm.Topics {
		fm.Topics[i] = strings.ToLower(topic)
	}
	return fm, body, nil
}

// Validate checks the required-field schema for publishable articles. The
// returned message names the offending field; it is shown to the author.
func (f *Frontmatter) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return models.NewValidationError("title is required")
	}
	if len(f.TargetCategories) == 0 {
		return models.NewValidationError("targetCategories is required")
	}
	for _, category := range f.TargetCategories {
		if !models.IsTargetCategory(category) {
			return models.NewValidationError(fmt.Sprintf("unrecognized target category: %q", category))
		}
	}
	return nil
}

// Metadata maps the validated frontmatter onto the article fields.
func (f *Frontmatter) Metadata() models.ArticleMetadata {
	return models.ArticleMetadata{
		Title:            f.Title,
		Category:         f.Category,
		TargetCategories: f.TargetCategories,
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asStringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s := strings.TrimSpace(asString(item))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// imageRefPattern matches markdown image references to files under an
// images/ directory, relative ("./images/…", "images/…") or root-relative
// ("/images/…").
var imageRefPattern = regexp.MustCompile(`!\[[^\]]*\]\(((?:\./|/)?images/[^)\s]+)\)`)

// ExtractImagePaths returns the literal path tokens referenced by the
// markdown source, in order of appearance, duplicates included. Rewriting
// replaces the exact substrings, so tokens are never normalized here.
func ExtractImagePaths(markdown string) []string {
	matches := imageRefPattern.FindAllStringSubmatch(markdown, -1)
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, m[1])
	}
	return refs
}

// SlugFromPath derives the article slug from the source file name.
func SlugFromPath(githubPath string) string {
	base := path.Base(githubPath)
	return Slugify(strings.TrimSuffix(base, ".md"))
}

// Slugify lowercases and collapses everything outside letters and digits
// into single dashes.
func Slugify(s string) string {
	s = strings.TrimSpace(s)
	var out []rune
	lastDash := false
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			out = append(out, unicode.ToLower(r))
			lastDash = false
		default:
			if !lastDash && len(out) > 0 {
				out = append(out, '-')
				lastDash = true
			}
		}
	}
	for len(out) > 0 && out[len(out)-1] == '-' {
		out = out[:len(out)-1]
	}
	return string(out)
}

var markdownParser = goldmark.New()

// ExtractFeatures pulls the search-relevant text out of a markdown body:
// all headings joined by newlines, and the plain body text with code,
// images and markup stripped. The summary is not derived here; the admin
// supplies it at approval time.
func ExtractFeatures(body string) (headings string, text string) {
	src := []byte(body)
	doc := markdownParser.Parser().Parse(gmtext.NewReader(src))

	var headingList []string
	var parts []string

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if h := strings.TrimSpace(nodeText(node, src)); h != "" {
				headingList = append(headingList, h)
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan, *ast.Image:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if s := strings.TrimSpace(string(node.Segment.Value(src))); s != "" {
				parts = append(parts, s)
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(headingList, "\n"), strings.Join(parts, " ")
}

// nodeText concatenates the raw text segments below a node.
func nodeText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := child.(*ast.Text); ok {
			sb.Write(t.Segment.Value(src))
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}
