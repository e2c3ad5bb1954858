package sections

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

//go:embed data/sections.json
var embeddedTable []byte

const noteKey = "note"

// issueEntry is one issue key of an act with its sections.
type issueEntry struct {
	key      string
	sections []legal.Section
}

// act is one statute. Issues keep the order of the source document.
type act struct {
	name   string
	note   string
	issues []issueEntry
	index  map[string]int
}

// Table is the immutable act → issue → sections table.
type Table struct {
	acts  []*act
	index map[string]*act
}

// Acts returns act names in document order.
func (t *Table) Acts() []string {
	out := make([]string, len(t.acts))
	for i, a := range t.acts {
		out[i] = a.name
	}
	return out
}

// DefaultTable parses the embedded table.
func DefaultTable() (*Table, error) {
	return ParseTable(bytes.NewReader(embeddedTable))
}

// LoadTable parses the table at path.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSectionTableInvalid, "failed to open sections table")
	}
	defer f.Close()
	return ParseTable(f)
}

// ParseTable reads {"ACT": {"note": "...", "Issue": [sections...]}} while
// keeping key order, which decides fuzzy-match precedence.
func ParseTable(r io.Reader) (*Table, error) {
	dec := json.NewDecoder(r)
	t := &Table{index: make(map[string]*act)}

	if err := expectDelim(dec, '{'); err != nil {
		return nil, invalidTable(err)
	}
	for dec.More() {
		name, err := readKey(dec)
		if err != nil {
			return nil, invalidTable(err)
		}
		a, err := parseAct(dec, name)
		if err != nil {
			return nil, invalidTable(err)
		}
		if _, dup := t.index[name]; dup {
			return nil, invalidTable(fmt.Errorf("duplicate act %q", name))
		}
		t.acts = append(t.acts, a)
		t.index[name] = a
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, invalidTable(err)
	}
	return t, nil
}

func parseAct(dec *json.Decoder, name string) (*act, error) {
	a := &act{name: name, index: make(map[string]int)}
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("act %q: %w", name, err)
	}
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, fmt.Errorf("act %q: %w", name, err)
		}
		if key == noteKey {
			if err := dec.Decode(&a.note); err != nil {
				return nil, fmt.Errorf("act %q note: %w", name, err)
			}
			continue
		}
		var secs []legal.Section
		if err := dec.Decode(&secs); err != nil {
			return nil, fmt.Errorf("act %q issue %q: %w", name, key, err)
		}
		a.index[key] = len(a.issues)
		a.issues = append(a.issues, issueEntry{key: key, sections: secs})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, fmt.Errorf("act %q: %w", name, err)
	}
	return a, nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func invalidTable(err error) error {
	return errors.Wrap(err, errors.ErrCodeSectionTableInvalid, "invalid sections table")
}
