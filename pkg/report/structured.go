package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// document is the shape of the json and yaml outputs.
type document struct {
	Commits    []entry `json:"commits"     yaml:"commits"`
	TotalCount int     `json:"total_count" yaml:"total_count"`
}

type entry struct {
	Time   string `json:"time"   yaml:"time"`
	Commit string `json:"commit" yaml:"commit"`
	Lines  int64  `json:"lines"  yaml:"lines"`
}

func toDocument(records []Record, loc *time.Location) document {
	doc := document{Commits: make([]entry, 0, len(records)), TotalCount: len(records)}

	for _, rec := range records {
		doc.Commits = append(doc.Commits, entry{
			Time:   rec.When.In(loc).Format(time.RFC3339),
			Commit: rec.CommitID,
			Lines:  rec.Lines,
		})
	}

	return doc
}

func renderJSON(w io.Writer, records []Record, opts Options) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(toDocument(records, opts.Location))
	if err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}

	return nil
}

func renderYAML(w io.Writer, records []Record, opts Options) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(toDocument(records, opts.Location))
	if err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return fmt.Errorf("flush yaml report: %w", err)
	}

	return nil
}
