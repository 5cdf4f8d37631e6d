// Package patcher fills repeated UI blocks that lack a required sub-element.
//
// Blocks are located with an element stack over the x/net/html tokenizer, so
// nesting decides which block a sub-element belongs to. Edits are spliced into
// the original text to keep every other byte intact, then the result is parsed
// with goquery and checked before it is accepted.
package patcher

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	repairerr "github.com/dtnitsch/site-repair/internal/errors"
	"github.com/dtnitsch/site-repair/models"
	"github.com/dtnitsch/site-repair/pkg/scanner"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// PathResolver computes depth-correct reference text for a logical path.
type PathResolver interface {
	Resolve(depth int, logical string) string
}

// Result counts what Patch did to one document.
type Result struct {
	Blocks   int // blocks seen
	Patched  int // placeholders inserted
	Stripped int // blocks whose suppression classes were removed
}

// Changes is the number of edits made.
func (r Result) Changes() int {
	return r.Patched + r.Stripped
}

// Patcher applies block rules to documents.
type Patcher struct {
	rules []models.BlockRule
	res   PathResolver
}

// New creates a Patcher. The rule slice is copied.
func New(rules []models.BlockRule, res PathResolver) *Patcher {
	return &Patcher{
		rules: append([]models.BlockRule(nil), rules...),
		res:   res,
	}
}

// Patch applies every rule to doc. When any rule finds structure it cannot
// place a block in with certainty, doc is left untouched and an
// AMBIGUOUS_STRUCTURE error is returned.
func (p *Patcher) Patch(doc *models.Document) (Result, error) {
	var total Result
	content := doc.Content

	for _, rule := range p.rules {
		if !strings.Contains(content, rule.BlockClass) {
			continue
		}
		out, res, err := p.apply(content, doc.Depth, rule)
		if err != nil {
			return Result{}, repairerr.NewAmbiguous(doc.RelPath, fmt.Sprintf("rule %q: %v", rule.Name, err))
		}
		content = out
		total.Blocks += res.Blocks
		total.Patched += res.Patched
		total.Stripped += res.Stripped
	}

	doc.Update(content)
	return total, nil
}

type openElement struct {
	tag      string
	block    bool
	hasChild bool
	start    int // offset of '<'
	bodyAt   int // offset just past the start tag
	class    scanner.Attr
	hasClass bool
}

func (p *Patcher) apply(content string, depth int, rule models.BlockRule) (string, Result, error) {
	var (
		res   Result
		stack []*openElement
		edits []scanner.Edit
	)
	placeholder := p.render(rule, depth)

	closeBlock := func(el *openElement) {
		res.Blocks++
		if !el.hasChild {
			edits = append(edits, scanner.Edit{Start: el.bodyAt, End: el.bodyAt, Text: placeholder})
			res.Patched++
		}
		if el.hasClass {
			if kept, ok := stripTokens(el.class.Value, rule.StripClasses); ok {
				edits = append(edits, scanner.Edit{Start: el.class.ValStart, End: el.class.ValEnd, Text: kept})
				res.Stripped++
			}
		}
	}

	z := html.NewTokenizer(strings.NewReader(content))
	offset := 0
	for {
		tt := z.Next()
		start := offset
		offset += len(z.Raw())

		switch tt {
		case html.ErrorToken:
			for _, el := range stack {
				if el.block {
					return "", Result{}, fmt.Errorf("block at offset %d is never closed", el.start)
				}
			}
			if len(edits) == 0 {
				return content, res, nil
			}
			out := scanner.ApplyEdits(content, edits)
			if err := verify(out, rule, res.Blocks); err != nil {
				return "", Result{}, err
			}
			return out, res, nil

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			attrs, err := scanner.ParseAttrs(content[start:offset], start)
			if err != nil {
				return "", Result{}, err
			}
			class, hasClass := scanner.Lookup(attrs, "class")

			// the sub-element belongs to the nearest enclosing block only
			if hasClass && scanner.HasToken(class.Value, rule.ChildClass) {
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i].block {
						stack[i].hasChild = true
						break
					}
				}
			}

			isBlock := hasClass && scanner.HasToken(class.Value, rule.BlockClass)
			if voidElements[tag] || tt == html.SelfClosingTagToken {
				if isBlock {
					return "", Result{}, fmt.Errorf("block at offset %d is an empty element <%s>", start, tag)
				}
				continue
			}
			stack = append(stack, &openElement{
				tag:      tag,
				block:    isBlock,
				start:    start,
				bodyAt:   offset,
				class:    class,
				hasClass: hasClass,
			})

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			idx := -1
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].tag == tag {
					idx = i
					break
				}
			}
			if idx < 0 {
				// stray end tag; browsers drop it too
				continue
			}
			for len(stack) > idx+1 {
				top := stack[len(stack)-1]
				if top.block {
					return "", Result{}, fmt.Errorf("block <%s> at offset %d closed implicitly by </%s>", top.tag, top.start, tag)
				}
				stack = stack[:len(stack)-1]
			}
			el := stack[idx]
			stack = stack[:idx]
			if el.block {
				closeBlock(el)
			}
		}
	}
}

func (p *Patcher) render(rule models.BlockRule, depth int) string {
	if rule.PlaceholderAsset == "" {
		return rule.Placeholder
	}
	return strings.ReplaceAll(rule.Placeholder, models.PathPlaceholder, p.res.Resolve(depth, rule.PlaceholderAsset))
}

// verify parses the patched markup and checks that the DOM agrees with the
// tokenizer on block count and that every block now holds the sub-element.
func verify(out string, rule models.BlockRule, blocks int) error {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	if err != nil {
		return fmt.Errorf("failed to parse patched markup: %w", err)
	}

	found := dom.Find("." + rule.BlockClass)
	if found.Length() != blocks {
		return fmt.Errorf("parser sees %d blocks, tokenizer saw %d", found.Length(), blocks)
	}

	var missing int
	found.Each(func(_ int, s *goquery.Selection) {
		if s.Find("."+rule.ChildClass).Length() == 0 {
			missing++
		}
	})
	if missing > 0 {
		return fmt.Errorf("%d blocks still lack %q after patching", missing, rule.ChildClass)
	}
	return nil
}

// stripTokens removes the given tokens from a class list. ok is false when none were present.
func stripTokens(value string, strip []string) (string, bool) {
	if len(strip) == 0 {
		return value, false
	}
	fields := strings.Fields(value)
	kept := fields[:0]
	removed := false
	for _, f := range fields {
		drop := false
		for _, s := range strip {
			if f == s {
				drop = true
				break
			}
		}
		if drop {
			removed = true
			continue
		}
		kept = append(kept, f)
	}
	if !removed {
		return value, false
	}
	return strings.Join(kept, " "), true
}
