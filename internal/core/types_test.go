package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestShortViewOmitsNames(t *testing.T) {
	d := Drink{ID: 1, Title: "Latte", Recipe: Recipe{{Name: "milk", Color: "white", Parts: 1}}}
	raw, err := json.Marshal(d.Short())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "milk") || strings.Contains(string(raw), `"name"`) {
		t.Fatalf("short view leaks ingredient name: %s", raw)
	}
	if !strings.Contains(string(raw), `"color":"white"`) || !strings.Contains(string(raw), `"parts":1`) {
		t.Fatalf("short view misses color/parts: %s", raw)
	}
}

func TestLongViewIncludesNames(t *testing.T) {
	d := Drink{ID: 1, Title: "Latte", Recipe: Recipe{{Name: "milk", Color: "white", Parts: 1}}}
	raw, err := json.Marshal(d.Long())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"name":"milk"`) {
		t.Fatalf("long view misses ingredient name: %s", raw)
	}
}

func TestLongViewDoesNotAliasRecipe(t *testing.T) {
	d := Drink{ID: 1, Title: "Latte", Recipe: Recipe{{Name: "milk", Color: "white", Parts: 1}}}
	long := d.Long()
	long.Recipe[0].Name = "oat milk"
	if d.Recipe[0].Name != "milk" {
		t.Fatalf("long view shares recipe storage with source drink")
	}
}

func TestShortViewEmptyRecipeIsList(t *testing.T) {
	raw, _ := json.Marshal(Drink{ID: 2, Title: "Air"}.Short())
	if !strings.Contains(string(raw), `"recipe":[]`) {
		t.Fatalf("expected empty recipe list, got %s", raw)
	}
}

func TestRecipeAcceptsSingleObject(t *testing.T) {
	var r Recipe
	if err := json.Unmarshal([]byte(`{"name":"water","color":"blue","parts":1}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(r) != 1 || r[0].Name != "water" {
		t.Fatalf("unexpected recipe: %#v", r)
	}
}

func TestRecipeRejectsScalar(t *testing.T) {
	var r Recipe
	if err := json.Unmarshal([]byte(`"water"`), &r); err == nil {
		t.Fatal("expected error for scalar recipe")
	}
}

func TestRecipeRejectsUnknownIngredientFields(t *testing.T) {
	for _, raw := range []string{
		`[{"name":"milk","color":"white","parts":1,"price":9}]`,
		`{"name":"milk","color":"white","parts":1,"price":9}`,
	} {
		var r Recipe
		if err := json.Unmarshal([]byte(raw), &r); err == nil {
			t.Fatalf("expected error for %s, got %#v", raw, r)
		}
	}
}

func TestDrinkValidate(t *testing.T) {
	ok := Recipe{{Name: "espresso", Color: "brown", Parts: 1}}
	cases := []struct {
		name  string
		drink Drink
		valid bool
	}{
		{"valid", Drink{Title: "Espresso", Recipe: ok}, true},
		{"blank title", Drink{Title: "   ", Recipe: ok}, false},
		{"long title", Drink{Title: strings.Repeat("x", MaxTitleLen+1), Recipe: ok}, false},
		{"empty recipe", Drink{Title: "Espresso"}, false},
		{"no name", Drink{Title: "Espresso", Recipe: Recipe{{Color: "brown", Parts: 1}}}, false},
		{"no color", Drink{Title: "Espresso", Recipe: Recipe{{Name: "espresso", Parts: 1}}}, false},
		{"zero parts", Drink{Title: "Espresso", Recipe: Recipe{{Name: "espresso", Color: "brown"}}}, false},
	}
	for _, tc := range cases {
		err := tc.drink.Validate()
		if tc.valid && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if !tc.valid && !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", tc.name, err)
		}
	}
}
