package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// defaultQuestions are asked when none are given.
var defaultQuestions = []string{
	"What is the name of the company?",
	"Who is the CEO of the company?",
	"What is their vacation policy?",
	"What is the termination policy?",
}

// readQuestionsFile returns the non-blank lines of path. Lines starting with
// '#' are comments.
func readQuestionsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening questions file: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading questions file: %w", err)
	}
	return out, nil
}

// resolveQuestions merges flag questions and file questions, falling back to
// defaultQuestions when both are empty.
func resolveQuestions(flagQs []string, file string) ([]string, error) {
	qs := make([]string, 0, len(flagQs))
	for _, q := range flagQs {
		if q = strings.TrimSpace(q); q != "" {
			qs = append(qs, q)
		}
	}
	if file != "" {
		fromFile, err := readQuestionsFile(file)
		if err != nil {
			return nil, err
		}
		qs = append(qs, fromFile...)
	}
	if len(qs) == 0 {
		return append([]string(nil), defaultQuestions...), nil
	}
	return qs, nil
}
