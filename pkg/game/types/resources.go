package types

import (
	"sort"

	"github.com/cbodonnell/evervoid/pkg/value"
)

// ResourceAmount maps resource names to quantities.
type ResourceAmount map[string]int

func NewResourceAmount(amounts map[string]int) ResourceAmount {
	r := make(ResourceAmount, len(amounts))
	for k, v := range amounts {
		r[k] = v
	}
	return r
}

func (r ResourceAmount) Clone() ResourceAmount {
	return NewResourceAmount(r)
}

// CanAfford reports whether r holds at least the given cost of every resource.
func (r ResourceAmount) CanAfford(cost map[string]int) bool {
	for k, v := range cost {
		if r[k] < v {
			return false
		}
	}
	return true
}

// Add adds every amount in other. Quantities never drop below zero.
func (r ResourceAmount) Add(other map[string]int) {
	for k, v := range other {
		r[k] = max(0, r[k]+v)
	}
}

func (r ResourceAmount) Subtract(cost map[string]int) {
	for k, v := range cost {
		r[k] = max(0, r[k]-v)
	}
}

func (r ResourceAmount) Names() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (r ResourceAmount) ToValue() *value.Value {
	m := value.NewObject()
	for k, v := range r {
		m.Set(k, value.Int(v))
	}
	return m
}

func ResourceAmountFromValue(m *value.Value) (ResourceAmount, error) {
	if m.Kind() != value.KindObject {
		return nil, constructionErrf("resources", "expected object, got %s", m.Kind())
	}
	r := make(ResourceAmount, m.Len())
	for _, k := range m.Keys() {
		amount, err := m.IntAttr(k)
		if err != nil {
			return nil, constructionErr("resources", err)
		}
		r[k] = amount
	}
	return r, nil
}
