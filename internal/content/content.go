// Package content holds the static, pre-authored response blocks. The table is
// built once at startup and shared read-only by every request.
package content

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"crisis-assistant/internal/domain"
)

//go:embed content.yaml
var defaultContent []byte

type topicBlocks struct {
	Problem   string `yaml:"problem"`
	Solutions string `yaml:"solutions"`
}

type document struct {
	Welcome          string                 `yaml:"welcome"`
	Help             string                 `yaml:"help"`
	Decline          string                 `yaml:"decline"`
	Greeting         string                 `yaml:"greeting"`
	BadRequest       string                 `yaml:"bad_request"`
	SolutionsPrompt  string                 `yaml:"solutions_prompt"`
	UnknownProblem   string                 `yaml:"unknown_problem"`
	UnknownSolutions string                 `yaml:"unknown_solutions"`
	Topics           map[string]topicBlocks `yaml:"topics"`
}

// Table is the immutable content table. The zero value is not usable; build
// one with Default, Load or Parse.
type Table struct {
	doc    document
	topics map[domain.Topic]topicBlocks
}

// Default parses the embedded content.
func Default() (*Table, error) {
	return Parse(defaultContent)
}

// Load reads a content file from disk. An empty path selects the embedded
// content.
func Load(path string) (*Table, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("content: read %q: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML content document.
func Parse(raw []byte) (*Table, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("content: decode: %w", err)
	}

	t := &Table{doc: doc, topics: make(map[domain.Topic]topicBlocks, len(doc.Topics))}
	for name, blocks := range doc.Topics {
		topic, err := domain.ParseTopic(name)
		if err != nil || topic == domain.TopicNone {
			return nil, fmt.Errorf("content: unknown topic %q", name)
		}
		t.topics[topic] = blocks
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) validate() error {
	var errs []error
	for _, topic := range domain.Topics() {
		blocks, ok := t.topics[topic]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("content: missing topic %q", topic))
		case strings.TrimSpace(blocks.Problem) == "":
			errs = append(errs, fmt.Errorf("content: topic %q has empty problem", topic))
		case strings.TrimSpace(blocks.Solutions) == "":
			errs = append(errs, fmt.Errorf("content: topic %q has empty solutions", topic))
		}
	}
	required := map[string]string{
		"welcome":          t.doc.Welcome,
		"help":             t.doc.Help,
		"decline":          t.doc.Decline,
		"greeting":         t.doc.Greeting,
		"bad_request":      t.doc.BadRequest,
		"solutions_prompt": t.doc.SolutionsPrompt,
	}
	for _, key := range []string{"welcome", "help", "decline", "greeting", "bad_request", "solutions_prompt"} {
		if strings.TrimSpace(required[key]) == "" {
			errs = append(errs, fmt.Errorf("content: %s must not be empty", key))
		}
	}
	return errors.Join(errs...)
}

// Problem returns the problem block for a topic.
func (t *Table) Problem(topic domain.Topic) string {
	if blocks, ok := t.topics[topic]; ok {
		return blocks.Problem
	}
	return t.doc.UnknownProblem
}

// Solutions returns the solutions block for a topic.
func (t *Table) Solutions(topic domain.Topic) string {
	if blocks, ok := t.topics[topic]; ok {
		return blocks.Solutions
	}
	return t.doc.UnknownSolutions
}

// ProblemWithPrompt is the reply to a detected topic: the problem block
// followed by the offer of solutions.
func (t *Table) ProblemWithPrompt(topic domain.Topic) string {
	return t.Problem(topic) + "\n\n" + t.doc.SolutionsPrompt
}

func (t *Table) Welcome() string         { return t.doc.Welcome }
func (t *Table) Help() string            { return t.doc.Help }
func (t *Table) Decline() string         { return t.doc.Decline }
func (t *Table) Greeting() string        { return t.doc.Greeting }
func (t *Table) BadRequest() string      { return t.doc.BadRequest }
func (t *Table) SolutionsPrompt() string { return t.doc.SolutionsPrompt }
