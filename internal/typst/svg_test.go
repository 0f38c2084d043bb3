package typst

import (
	"errors"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// TestSVGSize
// ---------------------------------------------------------------------------

func TestSVGSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		svg     string
		wantW   float64
		wantH   float64
		wantErr bool
	}{
		{name: "space separated", svg: `<svg viewBox="0 0 22 11"></svg>`, wantW: 22, wantH: 11},
		{name: "comma separated", svg: `<svg viewBox="0,0,5.5,2.25"></svg>`, wantW: 5.5, wantH: 2.25},
		{name: "single quotes", svg: `<svg viewBox='0 0 4 2'></svg>`, wantW: 4, wantH: 2},
		{name: "quoted angle bracket before viewBox", svg: `<svg aria-label="a>b" viewBox="0 0 4 2"></svg>`, wantW: 4, wantH: 2},
		{name: "doctype and comment first", svg: `<!DOCTYPE svg><!-- x --><svg viewBox="0 0 4 2"/>`, wantW: 4, wantH: 2},
		{name: "no svg", svg: `<div></div>`, wantErr: true},
		{name: "no viewBox", svg: `<svg width="1"></svg>`, wantErr: true},
		{name: "short viewBox", svg: `<svg viewBox="0 0 1"></svg>`, wantErr: true},
		{name: "bad number", svg: `<svg viewBox="0 0 x 1"></svg>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w, h, err := svgSize(tt.svg)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSVG) {
					t.Errorf("svgSize() error = %v, want ErrInvalidSVG", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("svgSize() unexpected error: %v", err)
			}
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("svgSize() = %v, %v; want %v, %v", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestNormalizeSVG
// ---------------------------------------------------------------------------

func TestNormalizeSVG(t *testing.T) {
	t.Parallel()

	t.Run("adds data size and strips prolog", func(t *testing.T) {
		t.Parallel()

		got, err := normalizeSVG(`<?xml version="1.0" encoding="UTF-8"?>` + "\n" + `<svg class="typst-doc" viewBox="0 0 22 11"><path/></svg>`)
		if err != nil {
			t.Fatalf("normalizeSVG() unexpected error: %v", err)
		}
		want := `<svg data-width="22" data-height="11" class="typst-doc" viewBox="0 0 22 11"><path/></svg>`
		if got != want {
			t.Errorf("normalizeSVG() = %q, want %q", got, want)
		}
	})

	t.Run("single-quoted viewBox", func(t *testing.T) {
		t.Parallel()

		got, err := normalizeSVG(`<svg viewBox='0 0 8 4'></svg>`)
		if err != nil {
			t.Fatalf("normalizeSVG() unexpected error: %v", err)
		}
		want := `<svg data-width="8" data-height="4" viewBox='0 0 8 4'></svg>`
		if got != want {
			t.Errorf("normalizeSVG() = %q, want %q", got, want)
		}
	})

	t.Run("keeps existing data size", func(t *testing.T) {
		t.Parallel()

		in := `<svg data-width="1" data-height="2" viewBox="0 0 22 11"></svg>`
		got, err := normalizeSVG(in)
		if err != nil {
			t.Fatalf("normalizeSVG() unexpected error: %v", err)
		}
		if got != in {
			t.Errorf("normalizeSVG() = %q, want unchanged", got)
		}
	})
}

// ---------------------------------------------------------------------------
// TestStackPages
// ---------------------------------------------------------------------------

func TestStackPages(t *testing.T) {
	t.Parallel()

	t.Run("no pages", func(t *testing.T) {
		t.Parallel()

		if _, err := stackPages(nil); !errors.Is(err, ErrNoPages) {
			t.Errorf("stackPages(nil) error = %v, want ErrNoPages", err)
		}
	})

	t.Run("multiple pages stacked vertically", func(t *testing.T) {
		t.Parallel()

		got, err := stackPages([]string{
			`<svg viewBox="0 0 20 10"><g id="a"/></svg>`,
			`<svg viewBox="0 0 30 5"><g id="b"/></svg>`,
		})
		if err != nil {
			t.Fatalf("stackPages() unexpected error: %v", err)
		}

		for _, want := range []string{
			`viewBox="0 0 30 15"`,
			`data-width="30" data-height="15"`,
			`<svg y="0" viewBox="0 0 20 10">`,
			`<svg y="10" viewBox="0 0 30 5">`,
		} {
			if !strings.Contains(got, want) {
				t.Errorf("stackPages() = %q, want to contain %q", got, want)
			}
		}
		if w, h, err := svgSize(got); err != nil || w != 30 || h != 15 {
			t.Errorf("svgSize(stacked) = %v, %v, %v; want 30, 15, nil", w, h, err)
		}
	})

	t.Run("invalid page reports index", func(t *testing.T) {
		t.Parallel()

		_, err := stackPages([]string{`<svg viewBox="0 0 1 1"/>`, `<p/>`})
		if err == nil || !strings.Contains(err.Error(), "page 2") {
			t.Errorf("stackPages() error = %v, want page 2 error", err)
		}
	})
}
