package search

import (
	"math"
	"reflect"
	"testing"
)

type notice struct {
	id    string
	title string
}

func titleOf(n notice) string { return n.title }

func TestTokenize(t *testing.T) {
	t.Parallel()

	got := Tokenize("  B.A. (Hons) Sem-IV, 2024!  ")
	want := []string{"b", "a", "hons", "sem", "iv", "2024"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}

	if got := Tokenize("!!!"); len(got) != 0 {
		t.Fatalf("Tokenize(punctuation) = %v, want empty", got)
	}
}

func TestSearchEmptyQueryReturnsAll(t *testing.T) {
	t.Parallel()

	items := []notice{{id: "a", title: "Holiday"}, {id: "b", title: "Result"}}
	for _, q := range []string{"", "   ", "--"} {
		got := Search(items, q, titleOf)
		if len(got) != len(items) {
			t.Fatalf("Search(%q) len = %d, want %d", q, len(got), len(items))
		}
		for i, r := range got {
			if r.Score != 1 || !r.IsExactMatch {
				t.Fatalf("Search(%q)[%d] = %+v, want score 1 exact", q, i, r)
			}
			if r.Item.id != items[i].id {
				t.Fatalf("Search(%q)[%d] item = %s, want %s", q, i, r.Item.id, items[i].id)
			}
		}
	}
}

func TestSearchNumeralEquivalence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		title string
		query string
	}{
		{name: "arabic query matches roman title", title: "Examination Routine for Semester IV", query: "sem 4"},
		{name: "roman query matches arabic title", title: "Semester 4 Result", query: "sem iv"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Search([]notice{{id: "n", title: tt.title}}, tt.query, titleOf)
			if len(got) != 1 {
				t.Fatalf("Search(%q) returned %d results, want 1", tt.query, len(got))
			}
			if math.Abs(got[0].Score-0.9) > 1e-9 {
				t.Fatalf("Search(%q) score = %v, want 0.9", tt.query, got[0].Score)
			}
			if got[0].IsExactMatch {
				t.Fatalf("Search(%q) flagged as exact match", tt.query)
			}
		})
	}
}

func TestSearchExactPhrase(t *testing.T) {
	t.Parallel()

	items := []notice{
		{id: "a", title: "Admission notice"},
		{id: "b", title: "Routine for Semester II"},
	}

	got := Search(items, "Routine, for", titleOf)
	if len(got) == 0 || got[0].Item.id != "b" {
		t.Fatalf("Search() = %+v, want b first", got)
	}
	if !got[0].IsExactMatch || got[0].Score != 1 {
		t.Fatalf("Search() top = %+v, want exact score 1", got[0])
	}
}

func TestSearchRankingAndThreshold(t *testing.T) {
	t.Parallel()

	items := []notice{
		{id: "reordered", title: "Semester Routine"},
		{id: "phrase", title: "Routine semester I"},
		{id: "partial", title: "Routines Sem"},
		{id: "prefix", title: "Routines Semesters"},
		{id: "none", title: "Annual Sports Meet"},
	}

	got := Search(items, "routine semester", titleOf)
	ids := make([]string, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.Item.id)
	}

	want := []string{"reordered", "phrase", "prefix"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("Search() ids = %v, want %v", ids, want)
	}
	if got[0].IsExactMatch {
		t.Fatal("reordered tokens flagged as exact match")
	}
	if !got[1].IsExactMatch {
		t.Fatal("verbatim phrase not flagged as exact match")
	}
	if got[2].Score != 0.8 {
		t.Fatalf("prefix score = %v, want 0.8", got[2].Score)
	}
}

func TestSearchTypoTolerance(t *testing.T) {
	t.Parallel()

	got := Search([]notice{{id: "n", title: "Examination Routine"}}, "examinaton", titleOf)
	if len(got) != 1 {
		t.Fatalf("Search() returned %d results, want 1", len(got))
	}
	want := (1 - 1.0/11) * 0.7
	if math.Abs(got[0].Score-want) > 1e-9 {
		t.Fatalf("Search() score = %v, want %v", got[0].Score, want)
	}
}

func TestSearchUnmatchedTokensPenalised(t *testing.T) {
	t.Parallel()

	// one of two tokens matches exactly: (1/2) * (1/2)
	got := Search([]notice{{id: "n", title: "Holiday list"}}, "holiday zzzz", titleOf)
	if len(got) != 0 {
		t.Fatalf("Search() = %+v, want dropped below threshold", got)
	}

	got = Search([]notice{{id: "n", title: "Holiday list"}}, "holiday lis", titleOf)
	if len(got) != 1 {
		t.Fatalf("Search() returned %d results, want 1", len(got))
	}
}

func TestSearchTieBreakByIndex(t *testing.T) {
	t.Parallel()

	items := []notice{
		{id: "first", title: "Semester Result"},
		{id: "other", title: "Sports"},
		{id: "second", title: "Semester Result"},
	}

	got := Search(items, "sem res", titleOf)
	if len(got) != 2 {
		t.Fatalf("Search() returned %d results, want 2", len(got))
	}
	if got[0].Item.id != "first" || got[1].Item.id != "second" {
		t.Fatalf("Search() order = %s, %s; want first, second", got[0].Item.id, got[1].Item.id)
	}
	if got[0].Index != 0 || got[1].Index != 2 {
		t.Fatalf("Search() indexes = %d, %d; want 0, 2", got[0].Index, got[1].Index)
	}
}

func TestTokenScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query  string
		target string
		want   float64
	}{
		{query: "iv", target: "4", want: 1},
		{query: "12", target: "xii", want: 1},
		{query: "sem", target: "semester", want: 0.8},
		{query: "ester", target: "semester", want: 0.5},
		{query: "1", target: "10", want: 0.8},
		{query: "ab", target: "ac", want: 0},
		{query: "zzz", target: "holiday", want: 0},
	}

	for _, tt := range tests {
		if got := TokenScore(tt.query, tt.target); got != tt.want {
			t.Fatalf("TokenScore(%q, %q) = %v, want %v", tt.query, tt.target, got, tt.want)
		}
	}
}

func TestTokenScoreMonotonicUnderNonMatchingSuffix(t *testing.T) {
	t.Parallel()

	pairs := []struct{ query, target string }{
		{query: "sem", target: "semester"},
		{query: "rout", target: "routine"},
		{query: "exam", target: "examination"},
		{query: "res", target: "results"},
		{query: "holidy", target: "holiday"},
	}

	for _, p := range pairs {
		prev := TokenScore(p.query, p.target)
		q := p.query
		for _, suffix := range []string{"q", "z", "q", "z"} {
			q += suffix
			got := TokenScore(q, p.target)
			if got > prev {
				t.Fatalf("TokenScore(%q, %q) = %v exceeds shorter query score %v", q, p.target, got, prev)
			}
			prev = got
		}
	}
}

func TestLevenshtein(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{a: "kitten", b: "sitting", want: 3},
		{a: "", b: "abc", want: 3},
		{a: "abc", b: "", want: 3},
		{a: "same", b: "same", want: 0},
		{a: "flaw", b: "lawn", want: 2},
	}

	for _, tt := range tests {
		if got := Levenshtein(tt.a, tt.b); got != tt.want {
			t.Fatalf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
