package pattern

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/coffersTech/nanotel/internal/model"
)

// Attrs holds the attributes extracted for one tag.
type Attrs map[string]string

// Get returns a string attribute.
func (a Attrs) Get(name string) (string, bool) {
	v, ok := a[name]
	return v, ok
}

// Int returns a numeric attribute. Attributes that failed numeric extraction are
// never stored, so ok is false for both missing and malformed values.
func (a Attrs) Int(name string) (int, bool) {
	v, ok := a[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Tag is one event kind carried by a record.
type Tag struct {
	Kind    Kind
	Dialect Dialect
	Attrs   Attrs
	// Malformed lists numeric attributes that were present but did not parse.
	Malformed []string
	// AmbiguousID is set when the kind is paired by message id and the record has none.
	AmbiguousID bool
}

// Event is a record together with every tag the matcher found on it.
type Event struct {
	// Index is the record's position in the input sequence.
	Index  int
	Record *model.LogRecord
	Tags   []Tag
}

// Tag returns the first tag of the given kind.
func (e *Event) Tag(k Kind) (Tag, bool) {
	for _, t := range e.Tags {
		if t.Kind == k {
			return t, true
		}
	}
	return Tag{}, false
}

// Has reports whether the event carries kind k.
func (e *Event) Has(k Kind) bool {
	_, ok := e.Tag(k)
	return ok
}

// Match returns the tags carried by rec. Unmatched records yield nil.
func Match(rec *model.LogRecord) []Tag {
	var tags []Tag
	for i := range rules {
		r := &rules[i]
		if r.Contains != "" && !strings.Contains(rec.Text, r.Contains) {
			continue
		}
		if !r.Match.MatchString(rec.Text) {
			continue
		}
		tag := Tag{
			Kind:        r.Kind,
			Dialect:     r.Dialect,
			Attrs:       make(Attrs, len(r.Attrs)),
			AmbiguousID: r.NeedsID && !rec.HasMessageID(),
		}
		for _, ex := range r.Attrs {
			v, ok := extract(ex.Pattern, rec.Text)
			if !ok {
				continue
			}
			if ex.Numeric {
				if _, err := strconv.Atoi(v); err != nil {
					tag.Malformed = append(tag.Malformed, ex.Name)
					continue
				}
			}
			tag.Attrs[ex.Name] = v
		}
		tags = append(tags, tag)
	}
	return tags
}

// TagAll runs the matcher over records and keeps only records that carry at least
// one tag. Input order is preserved.
func TagAll(records []model.LogRecord) []Event {
	var events []Event
	for i := range records {
		tags := Match(&records[i])
		if len(tags) == 0 {
			continue
		}
		events = append(events, Event{Index: i, Record: &records[i], Tags: tags})
	}
	return events
}

func extract(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	for _, g := range m[1:] {
		if g != "" {
			return g, true
		}
	}
	return "", true
}

var cidMention = regexp.MustCompile(`\bcid\s*[:=]\s*(\d+)`)

// MentionsCID reports whether text names the given PDP context id.
func MentionsCID(text string, cid int) bool {
	want := strconv.Itoa(cid)
	for _, m := range cidMention.FindAllStringSubmatch(text, -1) {
		if m[1] == want {
			return true
		}
	}
	return false
}
