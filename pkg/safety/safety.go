// Package safety screens note text for prompt-injection attempts before it
// reaches a language model.
package safety

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// wb is a leading word boundary that also works for Cyrillic.
const wb = `(?:^|[^\p{L}\p{N}_])`

var injectionPatterns = compile(
	// ignoring instructions
	wb+`(?i)(забудь|ignore|disregard|forget).*?(инструкц|instruction|rule|правил)`,
	wb+`(?i)(игнорируй|ignore).*?(всё|all|everything|предыдущ|previous)`,
	// role play
	wb+`(?i)(представь|pretend|imagine|act|play)\s.*?(что|that|as|like)`,
	wb+`(?i)(ты|you)\s.*?(кто|who|что|what).*?(который|who|that).*?(игнорир|ignore)`,
	wb+`(?i)(ты|you)\s.*?(должен|must|should|need).*?(игнорир|ignore|забыть|forget)`,
	// overriding the system
	wb+`(?i)(новый|new)\s.*?(система|system|prompt|инструкц|instruction)`,
	wb+`(?i)(измени|change|modify)\s.*?(роль|role|поведение|behavior)`,
	// direct commands
	wb+`(?i)(выполни|execute|run)\s.*?(команда|command|код|code)`,
	wb+`(?i)(покажи|show|reveal|display)\s.*?(промпт|prompt|инструкц|instruction|систем|system)`,
	// bypassing protection
	wb+`(?i)(обойди|bypass|circumvent|обход).*?(безопасн|security|защит|protection)`,
	wb+`(?i)(не|don't|do not)\s.*?(проверяй|check|валидир|validate)`,
	// contextual
	wb+`(?i)(в контексте|in context|в рамках|within).*?(prompt injection|инъекц)`,
	wb+`(?i)(это.*?пример|this.*?example).*?(prompt injection|инъекц)`,
)

var suspiciousWords = []string{
	"забудь", "ignore", "disregard", "forget",
	"представь", "pretend", "imagine", "act",
	"новый промпт", "new prompt", "system prompt",
	"игнорируй правила", "ignore rules",
	"выполни команду", "execute command",
	"обойди защиту", "bypass security",
}

var safeContexts = compile(
	`(?i)(изуч|learn|изучен|study).*?(prompt injection|инъекц)`,
	`(?i)(защит|protect|security).*?(от|from|against).*?(prompt injection|инъекц)`,
	`(?i)(пример|example).*?(prompt injection|инъекц).*?(атак|attack)`,
)

var (
	blankLines  = regexp.MustCompile(`\n\s*\n\s*\n`)
	multiSpaces = regexp.MustCompile(` {2,}`)
)

const (
	minLength        = 10
	leadingWindow    = 200
	contextRadius    = 50
	leadingLineCount = 5
)

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func isSafeContext(text string) bool {
	for _, re := range safeContexts {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Detect reports whether text looks like a prompt-injection attempt and
// returns the fragments that triggered it. Texts that discuss prompt
// injection as a topic are exempt.
func Detect(text string) (bool, []string) {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minLength {
		return false, nil
	}
	if isSafeContext(text) {
		return false, nil
	}

	var found []string
	for _, re := range injectionPatterns {
		for _, m := range re.FindAllString(text, -1) {
			found = append(found, trimBoundary(m))
		}
	}

	lead := strings.ToLower(prefixRunes(text, leadingWindow))
	for _, word := range suspiciousWords {
		idx := indexWord(lead, word)
		if idx < 0 {
			continue
		}
		if isSafeContext(window(lead, idx, len(word))) {
			continue
		}
		found = append(found, "suspicious_word: "+word)
	}
	return len(found) > 0, found
}

// Sanitize removes injection fragments and drops suspicious lines among the
// first few. Clean text is returned unchanged.
func Sanitize(text string) string {
	if text == "" {
		return text
	}
	if ok, _ := Detect(text); !ok {
		return text
	}

	sanitized := text
	for _, re := range injectionPatterns {
		sanitized = re.ReplaceAllStringFunc(sanitized, keepBoundary)
	}

	lines := strings.Split(sanitized, "\n")
	cleaned := make([]string, 0, len(lines))
	for i, line := range lines {
		if i < leadingLineCount && isSuspiciousLine(line) {
			continue
		}
		cleaned = append(cleaned, line)
	}
	sanitized = strings.Join(cleaned, "\n")

	sanitized = blankLines.ReplaceAllString(sanitized, "\n\n")
	sanitized = multiSpaces.ReplaceAllString(sanitized, " ")
	return strings.TrimSpace(sanitized)
}

func isSuspiciousLine(line string) bool {
	if isSafeContext(line) {
		return false
	}
	lower := strings.ToLower(line)
	for _, word := range suspiciousWords {
		if indexWord(lower, word) >= 0 {
			return true
		}
	}
	return false
}

// indexWord finds word in s where it is not part of a longer word.
func indexWord(s, word string) int {
	offset := 0
	for {
		i := strings.Index(s[offset:], word)
		if i < 0 {
			return -1
		}
		start := offset + i
		end := start + len(word)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(s) || !isWordRune(after)) {
			return start
		}
		offset = end
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// window returns about contextRadius bytes around s[idx:idx+n], aligned to runes.
func window(s string, idx, n int) string {
	start := max(0, idx-contextRadius)
	end := min(len(s), idx+n+contextRadius)
	for start > 0 && !utf8.RuneStart(s[start]) {
		start--
	}
	for end < len(s) && !utf8.RuneStart(s[end]) {
		end++
	}
	return s[start:end]
}

func prefixRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// trimBoundary drops the separator consumed by the leading word boundary.
func trimBoundary(m string) string {
	return strings.TrimLeftFunc(m, func(r rune) bool { return !isWordRune(r) })
}

// keepBoundary replaces a match with the separator it started with.
func keepBoundary(m string) string {
	r, size := utf8.DecodeRuneInString(m)
	if size > 0 && !isWordRune(r) {
		return m[:size]
	}
	return ""
}
