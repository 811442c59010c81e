package playerjs

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	stsPattern = regexp.MustCompile(`(?:signatureTimestamp|sts)\s*[:=]\s*(\d{4,})`)

	// The signature scrambler is an anonymous split/join function driven
	// by a helper object of reverse/splice/swap operations.
	sigFnPattern = regexp.MustCompile(
		`function(?:\s+[a-zA-Z0-9$]+)?\(([a-zA-Z])\)\{\1=\1\.split\(""\);([a-zA-Z0-9$]+)\.[a-zA-Z0-9$]+\(`)

	// Known shapes of the n-parameter dispatch site across player builds.
	nFnNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\.get\("n"\)\)&&\(b=([a-zA-Z0-9$]+)(?:\[(\d+)\])?\(`),
		regexp.MustCompile(`\.get\("n"\)\)\s*&&\s*\(b=([a-zA-Z0-9$]+)\[(\d+)\]\(`),
	}
)

const arrayDerefFormat = `var\s+%s\s*=\s*\[([a-zA-Z0-9$,\s]+)\]`

// extractSTS pulls the signing secret timestamp out of the player source.
func extractSTS(js string) (int, error) {
	m := stsPattern.FindStringSubmatch(js)
	if m == nil {
		return 0, errors.New("signature timestamp not found in player source")
	}
	return strconv.Atoi(m[1])
}

// extractSigFunction returns the full source of the signature scrambler
// together with its helper object declaration.
func extractSigFunction(js string) (string, error) {
	loc := sigFnPattern.FindStringSubmatchIndex(js)
	if loc == nil {
		return "", errors.New("signature function not found in player source")
	}

	fnSrc, err := readBalanced(js, loc[0])
	if err != nil {
		return "", fmt.Errorf("signature function: %w", err)
	}

	helperName := js[loc[4]:loc[5]]
	helperSrc, err := extractObject(js, helperName)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("(function(){%s;return %s})()", helperSrc, fnSrc), nil
}

// extractNFunction locates the n-parameter transform by its dispatch site
// and returns its full source.
func extractNFunction(js string) (string, error) {
	var name string
	for _, pattern := range nFnNamePatterns {
		m := pattern.FindStringSubmatch(js)
		if m == nil {
			continue
		}
		name = m[1]
		if len(m) > 2 && m[2] != "" {
			idx, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			resolved, err := resolveArrayEntry(js, name, idx)
			if err != nil {
				return "", err
			}
			name = resolved
		}
		break
	}
	if name == "" {
		return "", errors.New("n function not found in player source")
	}

	declPattern := regexp.MustCompile(regexp.QuoteMeta(name) + `\s*=\s*function\(`)
	loc := declPattern.FindStringIndex(js)
	if loc == nil {
		return "", fmt.Errorf("n function %q declaration not found", name)
	}
	start := strings.Index(js[loc[0]:], "function")
	fnSrc, err := readBalanced(js, loc[0]+start)
	if err != nil {
		return "", fmt.Errorf("n function: %w", err)
	}
	return fnSrc, nil
}

// resolveArrayEntry maps an indexed dispatch (b=XY[0](b)) to the function
// name stored in the lookup array.
func resolveArrayEntry(js, arrayName string, idx int) (string, error) {
	pattern := regexp.MustCompile(fmt.Sprintf(arrayDerefFormat, regexp.QuoteMeta(arrayName)))
	m := pattern.FindStringSubmatch(js)
	if m == nil {
		return "", fmt.Errorf("lookup array %q not found", arrayName)
	}
	entries := strings.Split(m[1], ",")
	if idx < 0 || idx >= len(entries) {
		return "", fmt.Errorf("lookup array %q has no entry %d", arrayName, idx)
	}
	return strings.TrimSpace(entries[idx]), nil
}

// extractObject returns the `var name={...}` declaration for a helper
// object, brace-balanced.
func extractObject(js, name string) (string, error) {
	pattern := regexp.MustCompile(`var\s+` + regexp.QuoteMeta(name) + `\s*=\s*\{`)
	loc := pattern.FindStringIndex(js)
	if loc == nil {
		return "", fmt.Errorf("helper object %q not found", name)
	}
	braceStart := strings.Index(js[loc[0]:loc[1]], "{") + loc[0]
	body, err := readBalancedAt(js, braceStart, '{', '}')
	if err != nil {
		return "", fmt.Errorf("helper object %q: %w", name, err)
	}
	return js[loc[0]:braceStart] + body, nil
}

// readBalanced reads a function literal starting at `function...` until its
// body's braces balance.
func readBalanced(js string, start int) (string, error) {
	braceStart := strings.Index(js[start:], "{")
	if braceStart < 0 {
		return "", errors.New("no opening brace")
	}
	body, err := readBalancedAt(js, start+braceStart, '{', '}')
	if err != nil {
		return "", err
	}
	return js[start:start+braceStart] + body, nil
}

// readBalancedAt scans from an opening delimiter to its match, skipping
// string literals and regex-free escapes. Player code is minified but
// well-formed, so a simple state machine suffices.
func readBalancedAt(js string, start int, open, close byte) (string, error) {
	if start >= len(js) || js[start] != open {
		return "", errors.New("not at opening delimiter")
	}
	depth := 0
	var inString byte
	escaped := false
	for i := start; i < len(js); i++ {
		c := js[i]
		if inString != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == inString:
				inString = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			inString = c
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return js[start : i+1], nil
			}
		}
	}
	return "", errors.New("unbalanced delimiters")
}
