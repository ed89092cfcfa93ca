// Package schema provides the static catalog of database objects the
// application is allowed to query. The catalog is loaded once at startup and
// is immutable for the lifetime of the process; it backs three concerns:
//
//   - the allowlist consulted by the SQL safety validator,
//   - the unique-key metadata required for deterministic pagination,
//   - the schema context rendered into language-model prompts.
//
// Table names follow the schema-qualified form used by the warehouse
// (e.g. "Sales.SalesOrderHeader"). Lookups are case-insensitive and an
// unqualified name is resolved against the "dbo" default schema, matching
// the behavior of the target database.
package schema

import (
	"fmt"
	"strings"
)

// Table describes one queryable table or view: its columns, a short
// human-readable description used in prompts, a representative sample row,
// and the columns that are unique per row (primary/identity keys) and may
// therefore anchor deterministic ORDER BY clauses.
type Table struct {
	Name        string
	Description string
	Columns     []string
	UniqueKeys  []string
	SampleRow   string
}

// Catalog is the immutable set of allowlisted tables. The zero value is not
// usable; construct one with New or Default.
type Catalog struct {
	tables []Table
	byName map[string]*Table // keyed by upper-cased qualified name
}

// New builds a Catalog from the given tables. Table order is preserved for
// prompt rendering so that generated schema context is stable across calls.
func New(tables []Table) *Catalog {
	c := &Catalog{
		tables: tables,
		byName: make(map[string]*Table, len(tables)),
	}
	for i := range c.tables {
		c.byName[strings.ToUpper(c.tables[i].Name)] = &c.tables[i]
	}
	return c
}

// Default returns the built-in AdventureWorks catalog: the curated subset of
// tables the service exposes for natural-language querying.
func Default() *Catalog {
	return New([]Table{
		{
			Name:        "Production.Product",
			Description: "Products catalog with pricing and categorization",
			Columns:     []string{"ProductID", "Name", "ProductNumber", "Color", "ListPrice", "StandardCost", "ProductCategoryID", "ProductSubcategoryID"},
			UniqueKeys:  []string{"ProductID"},
			SampleRow:   "(1, 'HL Road Frame - Black, 58', 'FR-R92B-58', 'Black', 1431.50, 868.63, 18, 1)",
		},
		{
			Name:        "Production.ProductCategory",
			Description: "Product categories (Bikes, Components, Clothing, Accessories)",
			Columns:     []string{"ProductCategoryID", "Name", "ModifiedDate"},
			UniqueKeys:  []string{"ProductCategoryID"},
			SampleRow:   "(1, 'Bikes', '2008-04-30 00:00:00.000')",
		},
		{
			Name:        "Production.ProductSubcategory",
			Description: "Product subcategories like Road Bikes, Mountain Bikes, etc.",
			Columns:     []string{"ProductSubcategoryID", "ProductCategoryID", "Name"},
			UniqueKeys:  []string{"ProductSubcategoryID"},
			SampleRow:   "(1, 1, 'Mountain Bikes')",
		},
		{
			Name:        "Sales.Customer",
			Description: "Customer records with territory assignments",
			Columns:     []string{"CustomerID", "PersonID", "StoreID", "TerritoryID", "AccountNumber"},
			UniqueKeys:  []string{"CustomerID"},
			SampleRow:   "(1, NULL, 1, 1, 'AW00000001')",
		},
		{
			Name:        "Sales.SalesOrderHeader",
			Description: "Sales order headers with customer and financial information",
			Columns:     []string{"SalesOrderID", "RevisionNumber", "OrderDate", "DueDate", "ShipDate", "Status", "CustomerID", "SalesPersonID", "TerritoryID", "SubTotal", "TaxAmt", "Freight", "TotalDue"},
			UniqueKeys:  []string{"SalesOrderID"},
			SampleRow:   "(43659, 8, '2011-05-31', '2011-06-12', '2011-06-07', 5, 29825, 279, 5, 20565.62, 1971.51, 616.09, 23153.23)",
		},
		{
			Name:        "Sales.SalesOrderDetail",
			Description: "Individual line items for sales orders",
			Columns:     []string{"SalesOrderID", "SalesOrderDetailID", "CarrierTrackingNumber", "OrderQty", "ProductID", "SpecialOfferID", "UnitPrice", "UnitPriceDiscount", "LineTotal"},
			UniqueKeys:  []string{"SalesOrderDetailID"},
			SampleRow:   "(43659, 1, '4911-403C-98', 1, 776, 1, 2024.994, 0.00, 2024.994)",
		},
		{
			Name:        "Person.Person",
			Description: "Person records for customers and employees",
			Columns:     []string{"BusinessEntityID", "PersonType", "Title", "FirstName", "MiddleName", "LastName", "Suffix", "EmailPromotion"},
			UniqueKeys:  []string{"BusinessEntityID"},
			SampleRow:   "(1, 'EM', 'Mr.', 'Ken', 'J', 'Sánchez', NULL, 0)",
		},
		{
			Name:        "Person.Address",
			Description: "Address information for customers and locations",
			Columns:     []string{"AddressID", "AddressLine1", "AddressLine2", "City", "StateProvinceID", "PostalCode"},
			UniqueKeys:  []string{"AddressID"},
			SampleRow:   "(1, '1970 Napa Ct.', NULL, 'Bothell', 79, '98011')",
		},
	})
}

// Tables returns the catalog's tables in declaration order.
func (c *Catalog) Tables() []Table { return c.tables }

// Names returns the qualified names of all allowlisted tables, in order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.tables))
	for i, t := range c.tables {
		out[i] = t.Name
	}
	return out
}

// Lookup resolves a table reference against the catalog. Matching is
// case-insensitive; an unqualified name is tried under the "dbo" schema.
// Three-part (cross-database) names never resolve.
func (c *Catalog) Lookup(ref string) (*Table, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.Count(ref, ".") >= 2 {
		return nil, false
	}
	key := strings.ToUpper(ref)
	if t, ok := c.byName[key]; ok {
		return t, true
	}
	if !strings.Contains(key, ".") {
		if t, ok := c.byName["DBO."+key]; ok {
			return t, true
		}
	}
	return nil, false
}

// IsAllowed reports whether ref names an allowlisted table.
func (c *Catalog) IsAllowed(ref string) bool {
	_, ok := c.Lookup(ref)
	return ok
}

// IsUniqueColumn reports whether column is unique per row within table.
// Both names are matched case-insensitively; false when the table is unknown.
func (c *Catalog) IsUniqueColumn(table, column string) bool {
	t, ok := c.Lookup(table)
	if !ok {
		return false
	}
	for _, k := range t.UniqueKeys {
		if strings.EqualFold(k, column) {
			return true
		}
	}
	return false
}

// HasColumn reports whether table contains column (case-insensitive).
func (c *Catalog) HasColumn(table, column string) bool {
	t, ok := c.Lookup(table)
	if !ok {
		return false
	}
	for _, col := range t.Columns {
		if strings.EqualFold(col, column) {
			return true
		}
	}
	return false
}

// PromptContext renders the catalog as the schema block embedded into the
// language-model system prompt: one entry per table with description,
// column list, unique key, and a sample row.
func (c *Catalog) PromptContext() string {
	var b strings.Builder
	for _, t := range c.tables {
		fmt.Fprintf(&b, "%s:\n", t.Name)
		fmt.Fprintf(&b, "  Description: %s\n", t.Description)
		fmt.Fprintf(&b, "  Columns: %s\n", strings.Join(t.Columns, ", "))
		fmt.Fprintf(&b, "  Unique key: %s\n", strings.Join(t.UniqueKeys, ", "))
		if t.SampleRow != "" {
			fmt.Fprintf(&b, "  Example: %s\n", t.SampleRow)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
