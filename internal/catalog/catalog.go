// Package catalog is the read-only source of rounds and their questions.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed data/catalog.yaml
var defaultData []byte

type Round struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Question is immutable once loaded. Answers is empty for open-text rounds.
type Question struct {
	ID      int      `json:"id" yaml:"id"`
	RoundID int      `json:"roundId" yaml:"round"`
	Prompt  string   `json:"prompt" yaml:"prompt"`
	Answers []string `json:"answers" yaml:"answers"`
}

type Catalog struct {
	rounds  []Round
	byRound map[int][]Question
}

type document struct {
	Rounds    []Round    `yaml:"rounds"`
	Questions []Question `yaml:"questions"`
}

// New validates rounds and questions and indexes them by round.
func New(rounds []Round, questions []Question) (*Catalog, error) {
	if len(rounds) == 0 {
		return nil, errors.New("catalog has no rounds")
	}
	c := &Catalog{
		rounds:  append([]Round(nil), rounds...),
		byRound: make(map[int][]Question, len(rounds)),
	}
	sort.Slice(c.rounds, func(i, j int) bool { return c.rounds[i].ID < c.rounds[j].ID })
	for i, r := range c.rounds {
		if i > 0 && c.rounds[i-1].ID == r.ID {
			return nil, fmt.Errorf("duplicate round id %d", r.ID)
		}
		c.byRound[r.ID] = nil
	}
	seen := make(map[int]bool, len(questions))
	for _, q := range questions {
		if seen[q.ID] {
			return nil, fmt.Errorf("duplicate question id %d", q.ID)
		}
		seen[q.ID] = true
		if _, ok := c.byRound[q.RoundID]; !ok {
			return nil, fmt.Errorf("question %d references unknown round %d", q.ID, q.RoundID)
		}
		if n := len(q.Answers); n == 1 || n > 4 {
			return nil, fmt.Errorf("question %d has %d answer options, want 0 or 2-4", q.ID, n)
		}
		for _, a := range q.Answers {
			if a == "" {
				return nil, fmt.Errorf("question %d has an empty answer option", q.ID)
			}
		}
		q.Answers = append([]string(nil), q.Answers...)
		c.byRound[q.RoundID] = append(c.byRound[q.RoundID], q)
	}
	return c, nil
}

// Load decodes a YAML catalog document.
func Load(r io.Reader) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc.Rounds, doc.Questions)
}

// LoadFile loads the catalog at path, or the embedded one when path is empty.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func Default() (*Catalog, error) {
	return Load(bytes.NewReader(defaultData))
}

// RoundsOrdered returns every round in ascending id order. The slice is a copy.
func (c *Catalog) RoundsOrdered() []Round {
	return append([]Round(nil), c.rounds...)
}

// QuestionsFor returns the questions of a round, or nil for an unknown round.
func (c *Catalog) QuestionsFor(roundID int) []Question {
	qs := c.byRound[roundID]
	out := make([]Question, len(qs))
	for i, q := range qs {
		q.Answers = append([]string(nil), q.Answers...)
		out[i] = q
	}
	return out
}
