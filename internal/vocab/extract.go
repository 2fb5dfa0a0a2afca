package vocab

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// Analyzer segments Japanese text morphologically.
type Analyzer struct {
	t *tokenizer.Tokenizer
}

// NewAnalyzer creates a tokenizer with the IPA dictionary.
func NewAnalyzer() (*Analyzer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("failed to build tokenizer: %w", err)
	}
	return &Analyzer{t: t}, nil
}

// BaseForms returns the dictionary forms of the words in text, deduplicated
// in order of first appearance. Punctuation and whitespace tokens are
// skipped.
func (a *Analyzer) BaseForms(text string) []string {
	var out []string
	seen := make(map[string]bool)

	for _, token := range a.t.Tokenize(text) {
		if token.Class == tokenizer.DUMMY {
			continue
		}

		// IPA feature 0 is the part of speech, feature 6 the base form.
		features := token.Features()
		if len(features) > 0 && features[0] == "記号" {
			continue
		}

		word := token.Surface
		if len(features) > 6 && features[6] != "*" {
			word = features[6]
		}

		word = strings.TrimSpace(word)
		if word == "" || isPunctuation(word) || seen[word] {
			continue
		}
		seen[word] = true
		out = append(out, word)
	}
	return out
}

func isPunctuation(s string) bool {
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return true
}

const extractInstruction = `You extract vocabulary from song lyrics for a language learner.
Given the lyrics, list the distinct words a learner would study, each in its dictionary form.
Keep words in their original script. Skip names, interjections and punctuation.
Respond with a JSON object: {"words": ["word1", "word2", ...]}`

// extractLLM asks the model for the word list of a non-Japanese lyric.
func (s *Service) extractLLM(ctx context.Context, text, language string) ([]string, error) {
	var parsed struct {
		Words []string `json:"words"`
	}
	prompt := fmt.Sprintf("Language: %s\n\nLyrics:\n%s", language, text)
	if err := s.brain.CompleteJSON(ctx, extractInstruction, prompt, &parsed); err != nil {
		return nil, fmt.Errorf("word extraction failed: %w", err)
	}

	var out []string
	seen := make(map[string]bool)
	for _, w := range parsed.Words {
		w = strings.TrimSpace(w)
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out, nil
}
