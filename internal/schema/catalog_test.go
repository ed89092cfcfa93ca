package schema

import (
	"strings"
	"testing"
)

func TestLookupCaseInsensitive(t *testing.T) {
	c := Default()

	cases := []struct {
		ref  string
		want bool
	}{
		{"Production.Product", true},
		{"production.product", true},
		{"SALES.SALESORDERHEADER", true},
		{"Sales.Unknown", false},
		{"HumanResources.Employee", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := c.IsAllowed(tc.ref); got != tc.want {
			t.Errorf("IsAllowed(%q) = %v, want %v", tc.ref, got, tc.want)
		}
	}
}

func TestLookupRejectsCrossDatabaseNames(t *testing.T) {
	c := Default()
	if c.IsAllowed("AdventureWorks.Production.Product") {
		t.Fatal("three-part name must not resolve")
	}
}

func TestLookupDefaultSchemaQualification(t *testing.T) {
	c := New([]Table{
		{Name: "dbo.Products", Columns: []string{"ID"}, UniqueKeys: []string{"ID"}},
	})
	if !c.IsAllowed("Products") {
		t.Fatal("unqualified name should resolve via dbo default schema")
	}
	if !c.IsAllowed("dbo.Products") {
		t.Fatal("qualified name should resolve")
	}
}

func TestIsUniqueColumn(t *testing.T) {
	c := Default()

	if !c.IsUniqueColumn("Production.Product", "ProductID") {
		t.Error("ProductID should be unique for Production.Product")
	}
	if !c.IsUniqueColumn("production.product", "productid") {
		t.Error("unique column match should be case-insensitive")
	}
	if c.IsUniqueColumn("Production.Product", "Color") {
		t.Error("Color is not unique")
	}
	if c.IsUniqueColumn("Nope.Nope", "ID") {
		t.Error("unknown table should never report unique columns")
	}
}

func TestHasColumn(t *testing.T) {
	c := Default()
	if !c.HasColumn("Sales.Customer", "AccountNumber") {
		t.Error("expected AccountNumber on Sales.Customer")
	}
	if c.HasColumn("Sales.Customer", "Password") {
		t.Error("unexpected column resolved")
	}
}

func TestPromptContextStableAndComplete(t *testing.T) {
	c := Default()

	a := c.PromptContext()
	b := c.PromptContext()
	if a != b {
		t.Fatal("PromptContext must be deterministic")
	}

	for _, name := range c.Names() {
		if !strings.Contains(a, name+":") {
			t.Errorf("prompt context missing table %s", name)
		}
	}
	if !strings.Contains(a, "Unique key: ProductID") {
		t.Error("prompt context should surface unique keys")
	}
}
