package markup

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const maxDropdownWidth = 30

var (
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithUnsafe(),
		),
	)

	htmlEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
)

// Compiled is the authoring-time output of a markup source.
type Compiled struct {
	HTML    string
	Answers []string
}

// Render converts the document to HTML. With reveal set, answer inputs are
// pre-filled and correct options selected, and every input is disabled.
func (d *Document) Render(reveal bool) (string, error) {
	parts := make([]string, 0, len(d.Blocks))
	for i := range d.Blocks {
		b := &d.Blocks[i]
		src := b.Source
		if b.Question {
			src = b.fragment(reveal)
		}

		var buf bytes.Buffer
		if err := md.Convert([]byte(src), &buf); err != nil {
			return "", fmt.Errorf("render block %d: %w", i, err)
		}
		parts = append(parts, buf.String())
	}
	return strings.Join(parts, "\n"), nil
}

// Render parses and renders src.
func Render(src string, reveal bool) (string, error) {
	return Parse(src).Render(reveal)
}

// Compile renders src without revealing answers and extracts its canonical
// answers from the same parse.
func Compile(src string) (*Compiled, error) {
	doc := Parse(src)
	out, err := doc.Render(false)
	if err != nil {
		return nil, err
	}
	return &Compiled{HTML: out, Answers: doc.Answers()}, nil
}

// fragment substitutes HTML for the question constructs of the block and
// leaves the surrounding markdown untouched.
func (b *Block) fragment(reveal bool) string {
	choiceType := "radio"
	if b.multiSelect() {
		choiceType = "checkbox"
	}

	var sb strings.Builder
	for _, t := range b.Tokens {
		switch t.Kind {
		case KindText:
			sb.WriteString(t.Text)
		case KindQuestionNumber:
			fmt.Fprintf(&sb, `<span class="numberIndex">Q%d.</span>`, b.Index)
		case KindTextInput:
			writeTextInput(&sb, b.Index, t, reveal)
		case KindDropdown:
			writeDropdown(&sb, b.Index, t.Options, reveal)
		case KindChoice:
			writeChoice(&sb, b.Index, choiceType, t, reveal)
		}
	}
	return sb.String()
}

func writeTextInput(sb *strings.Builder, index int, t Token, reveal bool) {
	if reveal && t.HasAnswer {
		fmt.Fprintf(sb, `<input type="text" value="%s" class="inlineTextbox answerFilled" readonly disabled />`,
			htmlEscaper.Replace(t.Answer))
		return
	}
	fmt.Fprintf(sb, `<input type="text" class="inlineTextbox" name="q%d_text" />`, index)
}

func writeDropdown(sb *strings.Builder, index int, opts []Option, reveal bool) {
	fmt.Fprintf(sb, `<select name="q%d" class="dropdownInline" style="width:%dch"`, index, dropdownWidth(opts))
	if reveal {
		sb.WriteString(" disabled")
	}
	sb.WriteString(">")
	for _, o := range opts {
		label := htmlEscaper.Replace(o.Label)
		selected := ""
		if reveal && o.Correct {
			selected = " selected"
		}
		fmt.Fprintf(sb, `<option value="%s"%s>%s</option>`, label, selected, label)
	}
	sb.WriteString("</select>")
}

func writeChoice(sb *strings.Builder, index int, choiceType string, t Token, reveal bool) {
	fmt.Fprintf(sb, `<label class="choiceItem"><input type="%s" name="q%d"`, choiceType, index)
	if reveal && t.Correct {
		sb.WriteString(" checked")
	}
	if reveal {
		sb.WriteString(" disabled")
	}
	fmt.Fprintf(sb, ` /> %s</label>`, htmlEscaper.Replace(t.Text))
}

// dropdownWidth is the longest option in characters plus two, capped.
func dropdownWidth(opts []Option) int {
	longest := 0
	for _, o := range opts {
		if n := utf8.RuneCountInString(o.Label); n > longest {
			longest = n
		}
	}
	return min(longest+2, maxDropdownWidth)
}
