// Package tokens derives the id-sorted token table (tokens.txt) that on-device
// runtimes use to map phonemes to model input ids.
package tokens

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/example/piper-export/internal/artifact"
	"github.com/example/piper-export/internal/sidecar"
)

// PreviewSize is how many tokens PrintSummary shows from each end.
const PreviewSize = 10

// Token is one (phoneme, id) line of the table.
type Token struct {
	Phoneme string
	ID      int
}

// Flatten emits one token per id, walking phonemes in map order and ids in
// list order.
func Flatten(m sidecar.PhonemeIDMap) []Token {
	out := make([]Token, 0, m.Len())
	for _, p := range m {
		for _, id := range p.IDs {
			out = append(out, Token{Phoneme: p.Phoneme, ID: id})
		}
	}

	return out
}

// Sort orders tokens by ascending id. Equal ids keep their relative order.
func Sort(tokens []Token) {
	slices.SortStableFunc(tokens, func(a, b Token) int {
		return cmp.Compare(a.ID, b.ID)
	})
}

// Write renders tokens as "<phoneme> <id>" lines.
func Write(w io.Writer, tokens []Token) error {
	for _, t := range tokens {
		if _, err := fmt.Fprintf(w, "%s %d\n", t.Phoneme, t.ID); err != nil {
			return err
		}
	}

	return nil
}

// GenerateOptions controls Generate.
type GenerateOptions struct {
	SidecarPath string
	OutPath     string
	Atomic      bool
}

// Result describes a generated table.
type Result struct {
	OutPath string
	Tokens  []Token
}

// Build flattens the phoneme map and sorts the result by id.
func Build(cfg sidecar.Config) []Token {
	toks := Flatten(cfg.PhonemeIDMap)
	Sort(toks)

	return toks
}

// Save writes tokens to path.
func Save(path string, atomic bool, toks []Token) error {
	err := artifact.WriteFile(path, atomic, func(w io.Writer) error {
		return Write(w, toks)
	})
	if err != nil {
		return err
	}

	slog.Info("wrote token table", "path", path, "tokens", len(toks))

	return nil
}

// Generate reads the sidecar, builds the sorted table and writes it. Nothing
// is written when the sidecar cannot be loaded.
func Generate(opts GenerateOptions) (Result, error) {
	cfg, err := sidecar.Load(opts.SidecarPath)
	if err != nil {
		return Result{}, err
	}

	toks := Build(cfg)

	slog.Debug("token table built", "sidecar", opts.SidecarPath, "phonemes", len(cfg.PhonemeIDMap), "tokens", len(toks))

	err = Save(opts.OutPath, opts.Atomic, toks)
	if err != nil {
		return Result{}, err
	}

	return Result{OutPath: opts.OutPath, Tokens: toks}, nil
}

// PrintSummary prints the token count and the first and last PreviewSize
// tokens. Short tables show everything in both lists.
func PrintSummary(w io.Writer, res Result) error {
	toks := res.Tokens

	head := toks[:min(PreviewSize, len(toks))]
	tail := toks[max(0, len(toks)-PreviewSize):]

	if _, err := fmt.Fprintf(w, "Created %s with %d tokens\n", res.OutPath, len(toks)); err != nil {
		return err
	}

	if err := printPreview(w, "First 10 tokens:", head); err != nil {
		return err
	}

	return printPreview(w, "Last 10 tokens:", tail)
}

func printPreview(w io.Writer, title string, toks []Token) error {
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}

	for _, t := range toks {
		if _, err := fmt.Fprintf(w, "  [%s] -> %d\n", t.Phoneme, t.ID); err != nil {
			return err
		}
	}

	return nil
}
