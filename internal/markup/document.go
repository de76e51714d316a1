// Package markup implements the exam question mini-language: markdown with
// inline question constructs ([!num], [T], [T*answer], [D]...[/D], [*] and [ ]).
// A document is split into plain markdown blocks and numbered question
// blocks; question blocks are tokenized once and then either rendered to
// HTML or reduced to their canonical answers.
package markup

import (
	"regexp"
	"strings"
)

var lineBreak = regexp.MustCompile(`\r?\n`)

// Block is a contiguous run of source lines.
type Block struct {
	// Question is set for blocks opened by a [!num] line.
	Question bool
	// Index is the 1-based question number; 0 for markdown blocks.
	Index  int
	Source string
	Tokens []Token
}

// Document is a parsed markup source.
type Document struct {
	Blocks []Block
}

// Parse splits src into blocks and tokenizes the question blocks. Every line
// containing [!num] opens a new question block which runs until the next such
// line. Lines before the first question form one markdown block.
func Parse(src string) *Document {
	lines := lineBreak.Split(src, -1)

	doc := &Document{}
	var (
		buf     []string
		inQ     bool
		qBuf    []string
		counter int
	)
	flushMarkdown := func() {
		if len(buf) > 0 {
			doc.Blocks = append(doc.Blocks, Block{Source: strings.Join(buf, "\n")})
			buf = nil
		}
	}
	flushQuestion := func() {
		if len(qBuf) > 0 {
			counter++
			text := strings.Join(qBuf, "\n")
			doc.Blocks = append(doc.Blocks, Block{
				Question: true,
				Index:    counter,
				Source:   text,
				Tokens:   tokenize(text),
			})
			qBuf = nil
		}
		inQ = false
	}

	for _, line := range lines {
		switch {
		case strings.Contains(line, markNumber):
			flushMarkdown()
			if inQ {
				flushQuestion()
			}
			inQ = true
			qBuf = []string{line}
		case inQ:
			qBuf = append(qBuf, line)
		default:
			buf = append(buf, line)
		}
	}
	if inQ {
		flushQuestion()
	}
	flushMarkdown()

	return doc
}

// QuestionCount returns the number of question blocks.
func (d *Document) QuestionCount() int {
	n := 0
	for _, b := range d.Blocks {
		if b.Question {
			n++
		}
	}
	return n
}

// Answers returns the canonical answers of every question block in document
// order: answer inputs (trimmed), correct dropdown options and correct choices.
// The result is never nil.
func (d *Document) Answers() []string {
	answers := make([]string, 0)
	for _, b := range d.Blocks {
		if !b.Question {
			continue
		}
		for _, t := range b.Tokens {
			switch t.Kind {
			case KindTextInput:
				if t.HasAnswer {
					answers = append(answers, strings.TrimSpace(t.Answer))
				}
			case KindDropdown:
				for _, o := range t.Options {
					if o.Correct {
						answers = append(answers, o.Label)
					}
				}
			case KindChoice:
				if t.Correct {
					answers = append(answers, t.Text)
				}
			}
		}
	}
	return answers
}

// ExtractAnswers parses src and returns its canonical answers.
func ExtractAnswers(src string) []string {
	return Parse(src).Answers()
}

// multiSelect reports whether the block's choices render as checkboxes:
// more than one [*] outside dropdowns, counting markers that did not form a
// choice.
func (b *Block) multiSelect() bool {
	n := 0
	for _, t := range b.Tokens {
		switch t.Kind {
		case KindChoice:
			if t.Correct {
				n++
			}
		case KindText:
			n += strings.Count(t.Text, markCorrect)
		}
	}
	return n > 1
}
