package schema

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/mohave"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operr"
)

func TestJSONRoundTripKeepsOrder(t *testing.T) {
	t.Parallel()

	s := New()
	s.Set("zulu", mohave.Long)
	s.Set("alpha", mohave.String)
	s.Set("mike", mohave.Datetime)

	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if want := `{"zulu":"long","alpha":"string","mike":"datetime"}`; string(raw) != want {
		t.Fatalf("Marshal() = %s, want %s", raw, want)
	}

	var back Schema
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if want := []string{"zulu", "alpha", "mike"}; !reflect.DeepEqual(back.Names(), want) {
		t.Fatalf("Unmarshal() names = %v, want %v", back.Names(), want)
	}
	if got, _ := back.Get("mike"); got != mohave.Datetime {
		t.Fatalf("Get(mike) = %q, want datetime", got)
	}
}

func TestUnmarshalRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{name: "not an object", raw: `["a"]`, wantErr: "expected a JSON object"},
		{name: "unknown type tag", raw: `{"a":"decimal"}`, wantErr: "unknown data type"},
		{name: "non-string type", raw: `{"a":1}`, wantErr: "non-string type"},
		{name: "duplicate key", raw: `{"a":"long","a":"string"}`, wantErr: "duplicate column"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var s Schema
			err := json.Unmarshal([]byte(tt.raw), &s)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Unmarshal(%s) error = %v, want containing %q", tt.raw, err, tt.wantErr)
			}
		})
	}
}

func TestFromPairs(t *testing.T) {
	t.Parallel()

	s, err := FromPairs(Pair{Name: "a", Type: mohave.Long}, Pair{Name: "b", Type: mohave.Bool})
	if err != nil {
		t.Fatalf("FromPairs() error = %v", err)
	}
	if want := []Pair{{Name: "a", Type: mohave.Long}, {Name: "b", Type: mohave.Bool}}; !reflect.DeepEqual(s.Pairs(), want) {
		t.Fatalf("Pairs() = %v, want %v", s.Pairs(), want)
	}

	if _, err := FromPairs(Pair{Name: "a", Type: mohave.Long}, Pair{Name: "a", Type: mohave.Bool}); err == nil {
		t.Fatalf("FromPairs(dup) error = nil, want error")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	f, err := frame.New(
		frame.Column{Name: "id", Type: frame.Long, Values: []any{int64(1)}},
		frame.Column{Name: "name", Type: frame.String, Values: []any{"x"}},
	)
	if err != nil {
		t.Fatalf("frame.New() error = %v", err)
	}

	tests := []struct {
		name    string
		pairs   []Pair
		wantErr string
	}{
		{
			name:  "exact cover",
			pairs: []Pair{{Name: "id", Type: mohave.Long}, {Name: "name", Type: mohave.String}},
		},
		{
			name:  "order does not matter",
			pairs: []Pair{{Name: "name", Type: mohave.String}, {Name: "id", Type: mohave.Long}},
		},
		{
			name:    "too few columns",
			pairs:   []Pair{{Name: "id", Type: mohave.Long}},
			wantErr: "schema has 1 columns but the dataset has 2",
		},
		{
			name: "unknown column",
			pairs: []Pair{
				{Name: "id", Type: mohave.Long},
				{Name: "missing", Type: mohave.String},
			},
			wantErr: `schema column "missing" is not present`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := FromPairs(tt.pairs...)
			if err != nil {
				t.Fatalf("FromPairs() error = %v", err)
			}
			err = s.Validate(f)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
			if !operr.IsKind(err, operr.SchemaMismatch) {
				t.Fatalf("Validate() kind = %v, want SchemaMismatch", operr.KindOf(err))
			}
		})
	}
}

func TestSetKeepsPositionOnReassign(t *testing.T) {
	t.Parallel()

	s := New()
	s.Set("a", mohave.String)
	s.Set("b", mohave.String)
	s.Set("a", mohave.Long)

	if want := []string{"a", "b"}; !reflect.DeepEqual(s.Names(), want) {
		t.Fatalf("Names() = %v, want %v", s.Names(), want)
	}
	if got, _ := s.Get("a"); got != mohave.Long {
		t.Fatalf("Get(a) = %q, want long", got)
	}
}
