// Package css rewrites stylesheet text so that every externally referenced
// resource (images, fonts, imported stylesheets) is replaced with a
// self-contained inline representation. Everything that is not such a
// reference is reproduced as it was written.
package css

import (
	"fmt"
	"net/url"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"

	"sfb/asset"
	"sfb/dataurl"
)

// imageURLProps are properties whose url() values carry images. The last
// six only occur inside @counter-style.
var imageURLProps = map[string]struct{}{
	"background":          {},
	"background-image":    {},
	"border-image":        {},
	"border-image-source": {},
	"content":             {},
	"cursor":              {},
	"list-style":          {},
	"list-style-image":    {},
	"mask":                {},
	"mask-image":          {},
	"additive-symbols":    {},
	"negative":            {},
	"pad":                 {},
	"prefix":              {},
	"suffix":              {},
	"symbols":             {},
}

// IsImageURLProp reports whether the named property takes image URLs.
func IsImageURLProp(propName string) bool {
	_, ok := imageURLProps[strings.ToLower(propName)]
	return ok
}

// Options control which references are embedded and how.
type Options struct {
	NoImages        bool // replace image references with a transparent placeholder
	NoFonts         bool // drop @font-face blocks entirely
	InlineAssetVars bool // deduplicate repeated image assets via custom properties
}

// Embedder rewrites stylesheets, fetching referenced resources through a
// Retriever. It is safe to reuse for independent stylesheets; every Embed
// call owns its private asset registry.
type Embedder struct {
	log       *zap.Logger
	retriever asset.Retriever
	opts      Options
}

// NewEmbedder creates a stylesheet embedder.
func NewEmbedder(retriever asset.Retriever, opts Options, log *zap.Logger) *Embedder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Embedder{log: log.Named("css-embed"), retriever: retriever, opts: opts}
}

// parseContext tracks what the rewriter is inside of. It is passed by value:
// nested blocks and function arguments legitimately diverge from their
// parent's context.
type parseContext struct {
	ruleName string // current at-rule, e.g. "import", "font-face"
	propName string // current property, decides image handling
	funcName string // enclosing function, "url" changes string handling
}

// Embed rewrites a stylesheet so it renders identically without further
// network access. base resolves relative references; imported stylesheets
// are embedded recursively with their own final URL as the new base.
func (e *Embedder) Embed(base *url.URL, cssText string) string {
	lex := css.NewLexer(parse.NewInput(strings.NewReader(cssText)))
	reg := newAssetRegistry()

	out := e.process(lex, base, parseContext{}, reg, css.ErrorToken)

	if len(reg.entries) == 0 {
		return out
	}
	var sb strings.Builder
	sb.WriteString(out)
	for _, a := range reg.entries {
		fmt.Fprintf(&sb, "@property --%s {inherits: false; syntax: \"<url>\"; initial-value: url(%s);}", a.name, a.dataURL)
	}
	return sb.String()
}

// process consumes tokens until stop (or end of input) and returns the
// rewritten text for that scope. The stop token itself is not emitted; the
// caller appends the closing bracket. Recursion depth follows the nesting
// depth of the input.
func (e *Embedder) process(lex *css.Lexer, base *url.URL, pctx parseContext, reg *assetRegistry, stop css.TokenType) string {
	var result strings.Builder

	curRule := pctx.ruleName
	curProp := pctx.propName

	for {
		tt, data := lex.Next()
		if tt == css.ErrorToken {
			// end of input; an unterminated scope truncates gracefully
			break
		}
		if tt == stop {
			break
		}

		switch tt {
		case css.WhitespaceToken, css.CommentToken,
			css.ColonToken, css.SemicolonToken, css.CommaToken,
			css.IncludeMatchToken, css.DashMatchToken, css.PrefixMatchToken,
			css.SuffixMatchToken, css.SubstringMatchToken, css.ColumnToken,
			css.CDOToken, css.CDCToken, css.DelimToken, css.UnicodeRangeToken:
			result.Write(data)

		case css.RightParenthesisToken, css.RightBracketToken, css.RightBraceToken:
			// unmatched closer in this scope, keep it as written
			result.Write(data)

		case css.IdentToken:
			curRule = ""
			curProp = unescape(string(data), false)
			result.WriteString(FormatIdent(curProp))

		case css.AtKeywordToken:
			curRule = unescape(string(data[1:]), false)
			if e.opts.NoFonts && curRule == "font-face" {
				continue
			}
			result.WriteByte('@')
			result.WriteString(curRule)

		case css.HashToken:
			name := unescape(string(data[1:]), false)
			if isIdentSequence(name) {
				// ID selector
				curRule = ""
				result.WriteByte('#')
				result.WriteString(FormatIdent(name))
			} else {
				// hex color and friends
				result.Write(data)
			}

		case css.LeftParenthesisToken, css.LeftBracketToken, css.LeftBraceToken:
			open, closer, closerType := blockDelimiters(tt)
			if e.opts.NoFonts && curRule == "font-face" {
				// keep the token stream synchronized but discard content
				skipScope(lex, closerType)
				continue
			}
			result.WriteString(open)
			result.WriteString(e.process(lex, base, parseContext{ruleName: curRule, propName: curProp}, reg, closerType))
			result.WriteString(closer)

		case css.FunctionToken:
			name := unescape(string(data[:len(data)-1]), false)
			inner := parseContext{ruleName: curRule, propName: curProp, funcName: name}
			if strings.EqualFold(name, "url") {
				inner.funcName = "url"
				// decide whether to wrap only after the argument is known:
				// a rewritten quoted string may already be a complete
				// url(...) or var(...) reference
				arg := e.process(lex, base, inner, reg, css.RightParenthesisToken)
				trimmed := strings.TrimSpace(arg)
				switch {
				case trimmed == "":
					result.WriteString("url()")
				case strings.HasPrefix(trimmed, "url(") || strings.HasPrefix(trimmed, "var("):
					result.WriteString(arg)
				default:
					result.WriteString("url(")
					result.WriteString(arg)
					result.WriteByte(')')
				}
			} else {
				result.WriteString(name)
				result.WriteByte('(')
				result.WriteString(e.process(lex, base, inner, reg, css.RightParenthesisToken))
				result.WriteByte(')')
			}

		case css.NumberToken, css.PercentageToken, css.DimensionToken:
			result.WriteString(formatNumeric(string(data)))

		case css.StringToken:
			value := decodeString(string(data))
			switch {
			case curRule == "import":
				// reset so nothing else in this at-rule looks like an import target
				curRule = ""
				if value == "" {
					result.WriteString("''")
					continue
				}
				result.WriteString(e.embedImport(base, value))
			case pctx.funcName == "url":
				if value == "" {
					continue
				}
				result.WriteString(e.embedReference(base, value, curProp, reg))
			default:
				result.WriteString(FormatQuotedString(value))
			}

		case css.URLToken:
			value := decodeURLValue(string(data))
			isImport := curRule == "import"
			if isImport {
				curRule = ""
			}
			if value == "" {
				result.WriteString("url()")
				continue
			}
			if strings.HasPrefix(value, "#") {
				// same-document fragment, nothing to fetch
				result.WriteString("url(")
				result.WriteString(value)
				result.WriteByte(')')
				continue
			}
			var core string
			if isImport {
				core = e.embedImport(base, value)
			} else {
				core = e.embedReference(base, value, curProp, reg)
			}
			if strings.HasPrefix(core, "var(") {
				result.WriteString(core)
			} else {
				result.WriteString("url(")
				result.WriteString(core)
				result.WriteByte(')')
			}

		case css.BadStringToken, css.BadURLToken:
			// deliberate error tolerance, not a failure

		default:
			result.Write(data)
		}
	}

	out := result.String()
	// ensure empty CSS is really empty
	if out != "" && strings.TrimSpace(out) == "" {
		out = strings.TrimSpace(out)
	}
	return out
}

func blockDelimiters(tt css.TokenType) (open, closer string, closerType css.TokenType) {
	switch tt {
	case css.LeftParenthesisToken:
		return "(", ")", css.RightParenthesisToken
	case css.LeftBracketToken:
		return "[", "]", css.RightBracketToken
	default:
		return "{", "}", css.RightBraceToken
	}
}

// skipScope consumes tokens through the closer matching an already-consumed
// opener, honoring nested scopes, and discards everything.
func skipScope(lex *css.Lexer, closer css.TokenType) {
	stack := []css.TokenType{closer}
	for len(stack) > 0 {
		tt, _ := lex.Next()
		switch tt {
		case css.ErrorToken:
			return
		case css.LeftParenthesisToken, css.FunctionToken:
			stack = append(stack, css.RightParenthesisToken)
		case css.LeftBracketToken:
			stack = append(stack, css.RightBracketToken)
		case css.LeftBraceToken:
			stack = append(stack, css.RightBraceToken)
		case stack[len(stack)-1]:
			stack = stack[:len(stack)-1]
		}
	}
}

// resolveRef resolves a reference literal against the stylesheet base URL.
func resolveRef(base *url.URL, ref string) *url.URL {
	if base == nil {
		u, err := url.Parse(ref)
		if err != nil {
			return nil
		}
		return u
	}
	u, err := base.Parse(ref)
	if err != nil {
		return nil
	}
	return u
}

// embedImport fetches an @import target, embeds the imported stylesheet
// recursively (with its own asset registry) and returns the replacement as
// a quoted data URL string. Unretrievable web URLs are preserved; anything
// else is dropped.
func (e *Embedder) embedImport(base *url.URL, value string) string {
	full := resolveRef(base, value)
	if full == nil {
		return ""
	}

	res, err := e.retriever.Retrieve(base, full)
	if err != nil {
		// keep remote reference if unable to retrieve the asset
		if full.Scheme == "http" || full.Scheme == "https" {
			return FormatQuotedString(full.String())
		}
		return ""
	}

	embedded := e.Embed(res.FinalURL, asset.DecodeText(res.Data, res.Charset))
	du := dataurl.New(res.MediaType, res.Charset, []byte(embedded), res.FinalURL)
	du.Fragment = full.Fragment
	e.log.Debug("Embedded imported stylesheet",
		zap.String("url", full.String()),
		zap.String("final", res.FinalURL.String()),
		zap.Int("bytes", len(embedded)))
	return FormatQuotedString(du.String())
}

// embedReference builds the replacement for one url() reference. Both the
// quoted-string and the unquoted-literal forms route through here so policy
// cannot diverge between them. The result is either a var(--...) reference
// or content to be placed inside url(...): a quoted data URL, a preserved
// quoted web URL, or nothing.
func (e *Embedder) embedReference(base *url.URL, value, propName string, reg *assetRegistry) string {
	if strings.HasPrefix(value, "#") {
		// same-document fragment on the quoted path
		return FormatQuotedString(value)
	}

	full := resolveRef(base, value)
	if full == nil {
		return ""
	}

	if e.opts.NoImages && IsImageURLProp(propName) {
		return FormatQuotedString(dataurl.EmptyImage)
	}

	res, err := e.retriever.Retrieve(base, full)
	if err != nil {
		// keep remote reference if unable to retrieve the asset
		if full.Scheme == "http" || full.Scheme == "https" {
			return FormatQuotedString(full.String())
		}
		return ""
	}

	if IsImageURLProp(propName) && e.opts.InlineAssetVars {
		finalKey := res.FinalURL.String()
		if a, ok := reg.lookup(finalKey); ok {
			return "var(--" + a.name + ")"
		}
		du := dataurl.New(res.MediaType, res.Charset, res.Data, res.FinalURL)
		du.Fragment = full.Fragment
		name := "img-" + HashURL(finalKey)
		reg.insert(finalKey, name, FormatQuotedString(du.String()))
		return "var(--" + name + ")"
	}

	du := dataurl.New(res.MediaType, res.Charset, res.Data, res.FinalURL)
	du.Fragment = full.Fragment
	return FormatQuotedString(du.String())
}
