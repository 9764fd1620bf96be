// Package ignore compiles gitignore-style pattern lines into evaluable path
// rules with last-match-wins semantics.
package ignore

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

// Rule is one compiled ignore pattern.
type Rule struct {
	Source  string
	Negated bool
	DirOnly bool

	re *regexp.Regexp
}

// Matches reports whether the rule fires for a slash-separated repo-relative
// path. Directory-only rules match the directory itself (when isDir) and
// anything beneath it.
func (r Rule) Matches(path string, isDir bool) bool {
	m := r.re.FindStringSubmatch(path)
	if m == nil {
		return false
	}
	if r.DirOnly && m[1] == "" {
		// The path is the directory itself, not something under it.
		return isDir
	}
	return true
}

// RuleSet evaluates an ordered list of rules.
type RuleSet struct {
	rules []Rule
}

// Compile turns raw ignore-file lines into an ordered rule set. Blank lines
// and #-comments are dropped; a malformed pattern is skipped rather than
// failing the whole set.
func Compile(lines []string) *RuleSet {
	var rules []Rule
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		negated := false
		if strings.HasPrefix(line, "!") {
			negated = true
			line = line[1:]
		}
		re, dirOnly, ok := translate(line)
		if !ok {
			continue
		}
		rules = append(rules, Rule{
			Source:  line,
			Negated: negated,
			DirOnly: dirOnly,
			re:      re,
		})
	}
	return &RuleSet{rules: rules}
}

// Ignored reports whether path is ignored. Rules are evaluated in declared
// order and the last rule that matches wins, so a later negation can
// reinstate a path excluded by an earlier pattern. No match means not
// ignored.
func (rs *RuleSet) Ignored(path string, isDir bool) bool {
	path = strings.Trim(path, "/")
	ignored := false
	for _, r := range rs.rules {
		if r.Matches(path, isDir) {
			ignored = !r.Negated
		}
	}
	return ignored
}

// Len returns the number of compiled rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// translate converts one gitignore pattern into a regular expression over
// slash-separated relative paths. Semantics:
//
//	*   any run of characters except the path separator
//	**  any run of characters including separators
//	?   one character except the separator
//	trailing /  the pattern names a directory subtree
//	leading /   the pattern is anchored at the repository root;
//	            otherwise it may match at any depth
//
// The returned regexp carries one capture group holding the "/rest" suffix
// for directory-only rules. ok is false for patterns that compile to
// nothing, such as a bare "!" or "/".
func translate(pattern string) (re *regexp.Regexp, dirOnly, ok bool) {
	if strings.HasSuffix(pattern, "/") {
		dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	anchored := strings.HasPrefix(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "/")
	if pattern == "" {
		return nil, false, false
	}

	var b strings.Builder
	if anchored {
		b.WriteString("^")
	} else {
		b.WriteString(`^(?:.*/)?`)
	}

	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch ch {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				b.WriteString(`.*`)
				i++
			} else {
				b.WriteString(`[^/]*`)
			}
		case '?':
			b.WriteString(`[^/]`)
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}

	if dirOnly {
		b.WriteString(`(/.*)?$`)
	} else {
		b.WriteString(`()$`)
	}

	compiled, err := regexp.Compile(b.String())
	if err != nil {
		return nil, false, false
	}
	return compiled, dirOnly, true
}

// Load reads an ignore file and compiles it. A missing file yields an empty
// rule set; any other read error is returned.
func Load(path string) (*RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Compile(nil), nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return Compile(lines), nil
}
