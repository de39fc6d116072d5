package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("embedded catalog should load: %v", err)
	}
	rounds := c.RoundsOrdered()
	if len(rounds) != 4 {
		t.Fatalf("expected 4 rounds, got %d", len(rounds))
	}
	for i := 1; i < len(rounds); i++ {
		if rounds[i-1].ID >= rounds[i].ID {
			t.Fatalf("rounds not ascending: %v", rounds)
		}
	}
	if rounds[0].Name != "Personnalité" {
		t.Fatalf("expected first round Personnalité, got %s", rounds[0].Name)
	}
	if got := len(c.QuestionsFor(1)); got != 25 {
		t.Fatalf("expected 25 questions in round 1, got %d", got)
	}
	for _, q := range c.QuestionsFor(2) {
		if len(q.Answers) != 0 {
			t.Fatalf("open-text question %d should have no options", q.ID)
		}
	}
}

func TestRoundsOrderedSortsAndCopies(t *testing.T) {
	c, err := New([]Round{{ID: 3, Name: "c"}, {ID: 1, Name: "a"}, {ID: 2, Name: "b"}}, nil)
	if err != nil {
		t.Fatalf("should build catalog: %v", err)
	}
	rounds := c.RoundsOrdered()
	if rounds[0].ID != 1 || rounds[1].ID != 2 || rounds[2].ID != 3 {
		t.Fatalf("unexpected order: %v", rounds)
	}
	rounds[0].Name = "mutated"
	if c.RoundsOrdered()[0].Name != "a" {
		t.Fatal("RoundsOrdered should return a copy")
	}
}

func TestQuestionsForFiltersByRound(t *testing.T) {
	c, err := New(
		[]Round{{ID: 1}, {ID: 2}},
		[]Question{
			{ID: 10, RoundID: 1, Prompt: "a", Answers: []string{"x", "y"}},
			{ID: 11, RoundID: 2, Prompt: "b"},
			{ID: 12, RoundID: 1, Prompt: "c", Answers: []string{"x", "y", "z"}},
		},
	)
	if err != nil {
		t.Fatalf("should build catalog: %v", err)
	}
	qs := c.QuestionsFor(1)
	if len(qs) != 2 || qs[0].ID != 10 || qs[1].ID != 12 {
		t.Fatalf("unexpected round 1 questions: %v", qs)
	}
	qs[0].Answers[0] = "mutated"
	if c.QuestionsFor(1)[0].Answers[0] != "x" {
		t.Fatal("QuestionsFor should not expose internal slices")
	}
	if qs := c.QuestionsFor(99); len(qs) != 0 {
		t.Fatalf("unknown round should have no questions, got %v", qs)
	}
}

func TestNewRejectsInvalidData(t *testing.T) {
	cases := map[string]struct {
		rounds    []Round
		questions []Question
		want      string
	}{
		"no rounds":       {nil, nil, "no rounds"},
		"duplicate round": {[]Round{{ID: 1}, {ID: 1}}, nil, "duplicate round"},
		"unknown round": {
			[]Round{{ID: 1}},
			[]Question{{ID: 1, RoundID: 2}},
			"unknown round",
		},
		"duplicate question": {
			[]Round{{ID: 1}},
			[]Question{{ID: 1, RoundID: 1}, {ID: 1, RoundID: 1}},
			"duplicate question",
		},
		"single option": {
			[]Round{{ID: 1}},
			[]Question{{ID: 1, RoundID: 1, Answers: []string{"only"}}},
			"answer options",
		},
		"five options": {
			[]Round{{ID: 1}},
			[]Question{{ID: 1, RoundID: 1, Answers: []string{"a", "b", "c", "d", "e"}}},
			"answer options",
		},
		"empty option": {
			[]Round{{ID: 1}},
			[]Question{{ID: 1, RoundID: 1, Answers: []string{"a", ""}}},
			"empty answer",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(tc.rounds, tc.questions)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := `rounds:
  - id: 7
    name: Solo
questions:
  - id: 70
    round: 7
    prompt: "only one?"
    answers: ["yes", "no"]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("should load catalog file: %v", err)
	}
	qs := c.QuestionsFor(7)
	if len(qs) != 1 || qs[0].Prompt != "only one?" {
		t.Fatalf("unexpected questions: %v", qs)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file should fail")
	}
	if _, err := Load(strings.NewReader("rounds: [{id: 1, colour: red}]")); err == nil {
		t.Fatal("unknown fields should be rejected")
	}
}
