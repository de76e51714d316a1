package markup

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Markers of the question mini-language. Stored exam content depends on
// these exact spellings.
const (
	markNumber        = "[!num]"
	markBlank         = "[T]"
	markAnswerOpen    = "[T*"
	markDropdownOpen  = "[D]"
	markDropdownClose = "[/D]"
	markCorrect       = "[*]"
	markIncorrect     = "[ ]"
)

// Kind tags a Token.
type Kind int

const (
	KindText Kind = iota
	KindTextInput
	KindDropdown
	KindChoice
	KindQuestionNumber
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindTextInput:
		return "text_input"
	case KindDropdown:
		return "dropdown"
	case KindChoice:
		return "choice"
	case KindQuestionNumber:
		return "question_number"
	default:
		return "unknown"
	}
}

// Option is one entry of a dropdown.
type Option struct {
	Label   string
	Correct bool
}

// Token is one span of a question block.
//
//   - KindText: Text holds raw markdown.
//   - KindTextInput: Answer holds the literal answer when HasAnswer is set.
//   - KindDropdown: Options in source order.
//   - KindChoice: Text holds the trimmed label.
type Token struct {
	Kind      Kind
	Text      string
	Answer    string
	HasAnswer bool
	Correct   bool
	Options   []Option
}

// tokenize scans a question block left to right. Spans are matched in this
// priority at each position: question number, blank input, answer input,
// dropdown, choice. Anything that does not form a complete construct is text.
func tokenize(s string) []Token {
	var (
		toks []Token
		text strings.Builder
	)
	flush := func() {
		if text.Len() > 0 {
			toks = append(toks, Token{Kind: KindText, Text: text.String()})
			text.Reset()
		}
	}

	for i := 0; i < len(s); {
		rest := s[i:]
		switch {
		case strings.HasPrefix(rest, markNumber):
			flush()
			toks = append(toks, Token{Kind: KindQuestionNumber})
			i += len(markNumber)
			continue

		case strings.HasPrefix(rest, markBlank):
			flush()
			toks = append(toks, Token{Kind: KindTextInput})
			i += len(markBlank)
			continue

		case strings.HasPrefix(rest, markAnswerOpen):
			// The answer is at least one character and may not contain ']'.
			body := rest[len(markAnswerOpen):]
			if end := strings.IndexByte(body, ']'); end > 0 {
				flush()
				toks = append(toks, Token{Kind: KindTextInput, Answer: body[:end], HasAnswer: true})
				i += len(markAnswerOpen) + end + 1
				continue
			}

		case strings.HasPrefix(rest, markDropdownOpen):
			body := rest[len(markDropdownOpen):]
			if end := strings.Index(body, markDropdownClose); end >= 0 {
				flush()
				toks = append(toks, Token{Kind: KindDropdown, Options: scanOptions(body[:end])})
				i += len(markDropdownOpen) + end + len(markDropdownClose)
				continue
			}

		case strings.HasPrefix(rest, markCorrect), strings.HasPrefix(rest, markIncorrect):
			if label, n, ok := scanChoice(rest); ok {
				flush()
				toks = append(toks, Token{Kind: KindChoice, Text: label, Correct: rest[1] == '*'})
				i += n
				continue
			}
		}

		text.WriteByte(s[i])
		i++
	}
	flush()
	return toks
}

// scanOptions collects every choice inside a dropdown body, ignoring the
// text between them.
func scanOptions(body string) []Option {
	opts := make([]Option, 0, 4)
	for i := 0; i < len(body); {
		rest := body[i:]
		if strings.HasPrefix(rest, markCorrect) || strings.HasPrefix(rest, markIncorrect) {
			if label, n, ok := scanChoice(rest); ok {
				opts = append(opts, Option{Label: label, Correct: rest[1] == '*'})
				i += n
				continue
			}
		}
		i++
	}
	return opts
}

// scanChoice reads a choice whose marker starts s. After the marker any
// whitespace, newlines included, is skipped and the label runs to the next
// newline or '['. When nothing is left for the label, trailing skipped
// whitespace other than a newline is handed back to it, so "[*] " still forms
// a choice with an empty label. It returns the trimmed label and the number
// of bytes consumed.
func scanChoice(s string) (string, int, bool) {
	wsStart := len(markCorrect)
	i := wsStart
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}

	start := i
	for i < len(s) && s[i] != '\n' && s[i] != '[' {
		i++
	}
	if i > start {
		return strings.TrimSpace(s[start:i]), i, true
	}

	for j := start; j > wsStart; {
		r, size := utf8.DecodeLastRuneInString(s[wsStart:j])
		if r != '\n' {
			return "", j, true
		}
		j -= size
	}
	return "", 0, false
}
