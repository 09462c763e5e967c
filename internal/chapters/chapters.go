// Package chapters splits the plain-text export of a rulebook PDF (pdftotext
// output) into class chapters and their numbered sections, so the official
// wording can be quoted as bump question bodies.
package chapters

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

// ErrNoChapters is returned when none of the definitions matched the text.
var ErrNoChapters = errors.New("no chapters found")

// Definition locates one chapter in the text. Number is the chapter number
// used in section numbers ("13" for 13.1, 13.2...); an empty Number means the
// chapter is unnumbered and has no sections.
type Definition struct {
	Name   string
	Number string
	Start  *regexp.Regexp
	End    *regexp.Regexp
}

// Chapter is one extracted class chapter.
type Chapter struct {
	Name     string    `json:"name" yaml:"name"`
	Number   string    `json:"number,omitempty" yaml:"number,omitempty"`
	Text     string    `json:"text" yaml:"text"`
	Sections []Section `json:"sections,omitempty" yaml:"sections,omitempty"`
}

// Section is a numbered subchapter, e.g. 13.2 Tires.
type Section struct {
	Number string `json:"number" yaml:"number"`
	Title  string `json:"title" yaml:"title"`
	Body   string `json:"body" yaml:"body"`
}

// Section looks a section up by number.
func (c Chapter) Section(number string) (Section, bool) {
	for _, s := range c.Sections {
		if s.Number == number {
			return s, true
		}
	}
	return Section{}, false
}

// SCCASolo locates the class chapters of the SCCA National Solo rules.
var SCCASolo = []Definition{
	numbered("Street", "13", `STREET CATEGORY`, `14\. STREET TOURING® CATEGORY`),
	numbered("Street Touring", "14", `STREET TOURING® CATEGORY`, `15\. STREET PREPARED CATEGORY`),
	numbered("Street Prepared", "15", `STREET PREPARED CATEGORY`, `16\. STREET MODIFIED CATEGORY`),
	numbered("Street Modified", "16", `STREET MODIFIED CATEGORY`, `17\. PREPARED CATEGORY`),
	numbered("Prepared", "17", `PREPARED CATEGORY`, `18\. MODIFIED CATEGORY`),
	numbered("Modified", "18", `MODIFIED CATEGORY`, `19\. KART CATEGORY`),
	numbered("Solo Spec Coupe", "20", `SOLO® SPEC COUPE \(SSC\)`, `21\. PROSOLO® NATIONAL SERIES RULES`),
	{
		Name:  "Extreme Street",
		Start: regexp.MustCompile(`\n\f?EXTREME STREET \(XS\)\n`),
		End:   regexp.MustCompile(`\n\f?APPENDIX C - SOLO® ROLL BAR STANDARDS\n`),
	},
}

func numbered(name, number, heading, next string) Definition {
	return Definition{
		Name:   name,
		Number: number,
		Start:  regexp.MustCompile(`\n\f?` + regexp.QuoteMeta(number) + `\. ` + heading + `\n`),
		End:    regexp.MustCompile(`\n\f?` + next + `\n`),
	}
}

var (
	replacer = strings.NewReplacer(
		"\r\n", "\n",
		"ﬀ", "ff",
		"ﬁ", "fi",
		"ﬂ", "fl",
		"“", `"`,
		"”", `"`,
		"’", "'",
	)
	// running title at the top of every page: a form feed then "13. STREET CATEGORY"
	pageHeader = regexp.MustCompile(`\f[0-9]+\. [^\n]*\n`)
	pageFooter = regexp.MustCompile(`(?i)([0-9]+ — )*20[0-9]{2} SCCA® NATIONAL SOLO® RULES( )*(— [0-9]+)*`)
	blankRuns  = regexp.MustCompile(`\n{3,}`)
)

// Normalize replaces ligatures and typographic quotes and drops page footers.
// Form feeds stay: chapter headings are matched on them.
func Normalize(text string) string {
	text = replacer.Replace(text)
	return pageFooter.ReplaceAllString(text, "")
}

// stripPages removes the running title repeated under every page break.
func stripPages(text string) string {
	text = pageHeader.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\f", "")
	return blankRuns.ReplaceAllString(text, "\n\n")
}

// Read normalizes the text read from r and extracts the chapters of defs.
func Read(r io.Reader, defs []Definition) ([]Chapter, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Extract(Normalize(string(data)), defs)
}

// Extract cuts each defined chapter out of text, in text order. A chapter
// whose start marker is missing is skipped; one whose end marker is missing
// runs to the end of the text. Sections come from the table of contents.
func Extract(text string, defs []Definition) ([]Chapter, error) {
	type located struct {
		chapter Chapter
		at      int
	}

	var found []located
	for _, def := range defs {
		start := def.Start.FindStringIndex(text)
		if start == nil {
			continue
		}

		end := len(text)
		if loc := def.End.FindStringIndex(text[start[1]:]); loc != nil {
			end = start[1] + loc[0]
		}
		heading := strings.Trim(text[start[0]:start[1]], "\n\f")
		body := stripPages(text[start[1]:end])

		chapter := Chapter{
			Name:   def.Name,
			Number: def.Number,
			Text:   strings.TrimSpace(heading + "\n" + body),
		}
		if def.Number != "" {
			chapter.Sections = sections(body, tableOfContents(text, def.Number))
		}
		found = append(found, located{chapter: chapter, at: start[0]})
	}

	if len(found) == 0 {
		return nil, ErrNoChapters
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].at < found[j].at })
	chapters := make([]Chapter, len(found))
	for i, f := range found {
		chapters[i] = f.chapter
	}
	return chapters, nil
}

// tableOfContents lists the sections of a chapter from dotted leader lines
// such as "13.2 Tires ........ 97". A single match is treated as noise.
func tableOfContents(text, number string) []Section {
	toc := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(number) + `\.([0-9]+[.A-Z]*) ([^.\n]*?) ?\.{2,}[. ]*([0-9]+)[ \t]*$`)
	matches := toc.FindAllStringSubmatch(text, -1)
	if len(matches) < 2 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var entries []Section
	for _, m := range matches {
		n := number + "." + m[1]
		if seen[n] {
			continue
		}
		seen[n] = true
		entries = append(entries, Section{Number: n, Title: strings.TrimSpace(m[2])})
	}
	return entries
}

// sections fills each table-of-contents entry with the text between its
// heading and the next heading found in the chapter. Entries whose heading is
// not in the chapter body are dropped.
func sections(chapter string, entries []Section) []Section {
	type heading struct {
		entry Section
		start int
		end   int
	}

	var headings []heading
	offset := 0
	for _, entry := range entries {
		re := headingPattern(entry)
		loc := re.FindStringIndex(chapter[offset:])
		if loc == nil {
			continue
		}
		h := heading{entry: entry, start: offset + loc[0], end: offset + loc[1]}
		headings = append(headings, h)
		offset = h.end
	}

	result := make([]Section, 0, len(headings))
	for i, h := range headings {
		stop := len(chapter)
		if i+1 < len(headings) {
			stop = headings[i+1].start
		}
		s := h.entry
		s.Body = strings.TrimSpace(chapter[h.end:stop])
		result = append(result, s)
	}
	return result
}

func headingPattern(s Section) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?im)^%s\.? %s\.?[ \t]*`, regexp.QuoteMeta(s.Number), regexp.QuoteMeta(s.Title)))
}
