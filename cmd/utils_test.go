package cmd

import (
	"testing"

	"github.com/dindinbro/discreen/pkg/core"
)

func TestParseCriteriaArgs(t *testing.T) {
	criteria, err := parseCriteriaArgs([]string{"email=a@b.com", "lastName=Dupont"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(criteria) != 2 {
		t.Fatalf("len = %d", len(criteria))
	}
	if criteria[0].Type != core.TypeEmail || criteria[0].Value != "a@b.com" {
		t.Fatalf("first = %+v", criteria[0])
	}
	if criteria[1].Type != core.TypeLastName || criteria[1].Value != "Dupont" {
		t.Fatalf("second = %+v", criteria[1])
	}
}

func TestParseCriteriaArgsValueWithEquals(t *testing.T) {
	criteria, err := parseCriteriaArgs([]string{"password=a=b"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if criteria[0].Value != "a=b" {
		t.Fatalf("value = %q", criteria[0].Value)
	}
}

func TestParseCriteriaArgsErrors(t *testing.T) {
	if _, err := parseCriteriaArgs([]string{"noequals"}); err == nil {
		t.Fatal("expected error for missing =")
	}
	if _, err := parseCriteriaArgs([]string{"bogus=x"}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}
