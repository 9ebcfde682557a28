package core

import (
	"sort"
	"strings"
)

const (
	TokenArticleURL = "article_url"
	TokenKeyword    = "keyword"
	TokenImageTitle = "image_title"
	TokenSitemap    = "sitemap"

	titleToken        = "{{title}}"
	defaultImageTitle = "Post"
)

// Token renders the literal placeholder for name.
func Token(name string) string {
	return "{{" + name + "}}"
}

// Resolve replaces every literal {{name}} with its binding in a single pass.
// Replacement text is never rescanned and unmatched tokens stay verbatim.
func Resolve(text string, bindings map[string]string) string {
	if text == "" || len(bindings) == 0 || !strings.Contains(text, "{{") {
		return text
	}
	keys := make([]string, 0, len(bindings))
	for key := range bindings {
		if key == "" {
			continue
		}
		keys = append(keys, key)
	}
	// strings.Replacer picks the first matching pair in argument order.
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys)*2)
	for _, key := range keys {
		pairs = append(pairs, Token(key), bindings[key])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// BindingsFor assembles the substitution table for one block. Work field
// values come first, non-empty block overrides replace them and the built-in
// tokens are applied last.
func BindingsFor(work Work, block Block, sitemap string) map[string]string {
	bindings := make(map[string]string, len(work.Fields)+len(block.Fields)+4)
	for key, field := range work.Fields {
		bindings[key] = field.Value
	}
	for key, override := range block.Fields {
		if override.Value != "" {
			bindings[key] = override.Value
		}
	}
	bindings[TokenArticleURL] = block.ArticleURL
	bindings[TokenKeyword] = block.Keyword
	bindings[TokenImageTitle] = ImageTitle(block.FeatureImageTitle, block.Keyword)
	bindings[TokenSitemap] = sitemap
	return bindings
}

// ImageTitle expands {{title}} in the feature image title template with the
// keyword, or with "Post" when the keyword is empty.
func ImageTitle(template string, keyword string) string {
	title := strings.TrimSpace(keyword)
	if title == "" {
		title = defaultImageTitle
	}
	return strings.ReplaceAll(template, titleToken, title)
}
