package revision_test

import (
	"fmt"

	"chronicle/pkg/revision"
)

// Billing fixtures with a cyclic relation graph: an invoice follows its
// lines and customer, and each line points back at its invoice.

type customer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *customer) EntityKind() string { return "billing.customer" }
func (c *customer) EntityID() string   { return c.ID }

type invoice struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Total  int    `json:"total"`
	Secret string `json:"secret"`

	lines    []*line
	customer *customer
}

func (i *invoice) EntityKind() string { return "billing.invoice" }
func (i *invoice) EntityID() string   { return i.ID }

func (i *invoice) Relation(name string) (revision.Relation, error) {
	switch name {
	case "lines":
		entities := make([]revision.Entity, 0, len(i.lines))
		for _, l := range i.lines {
			entities = append(entities, l)
		}
		return revision.ManyRelation(entities...), nil
	case "customer":
		if i.customer == nil {
			return revision.NoRelation(), nil
		}
		return revision.OneRelation(i.customer), nil
	default:
		return revision.Relation{}, fmt.Errorf("unknown relation %q", name)
	}
}

type line struct {
	ID     string `json:"id"`
	Amount int    `json:"amount"`

	invoice *invoice
}

func (l *line) EntityKind() string { return "billing.line" }
func (l *line) EntityID() string   { return l.ID }

func (l *line) Relation(name string) (revision.Relation, error) {
	switch name {
	case "invoice":
		if l.invoice == nil {
			return revision.NoRelation(), nil
		}
		return revision.OneRelation(l.invoice), nil
	default:
		return revision.Relation{}, fmt.Errorf("unknown relation %q", name)
	}
}

// draft is a variant filed under the invoice hierarchy when the adapter
// keeps the default concrete-kind behavior.
type draft struct {
	invoice
}

func (d *draft) EntityKind() string         { return "billing.draft" }
func (d *draft) ConcreteEntityKind() string { return "billing.invoice" }
