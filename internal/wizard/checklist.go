package wizard

import "encoding/json"

// SafetyControl is one entry of the fixed hazard-control checklist. Item is
// the immutable identity label.
type SafetyControl struct {
	Item    string `json:"item"`
	Checked bool   `json:"checked"`
	Notes   string `json:"notes,omitempty"`
}

// Checklist is the fixed-cardinality safety-control checklist. Entries are
// created once from the catalogue and live for the draft's lifetime: they can
// be toggled and annotated but never added or removed. The item label keys
// the state; the catalogue order is preserved for rendering and submission.
type Checklist struct {
	order []string
	state map[string]*controlState
}

type controlState struct {
	Checked bool
	Notes   string
}

// NewChecklist builds an all-unchecked checklist from the ordered catalogue.
func NewChecklist(items []string) Checklist {
	c := Checklist{state: make(map[string]*controlState, len(items))}
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := c.state[item]; ok {
			continue
		}
		c.order = append(c.order, item)
		c.state[item] = &controlState{}
	}
	return c
}

func (c Checklist) Len() int { return len(c.order) }

// Items returns the checklist entries in catalogue order.
func (c Checklist) Items() []SafetyControl {
	out := make([]SafetyControl, 0, len(c.order))
	for _, item := range c.order {
		st := c.state[item]
		out = append(out, SafetyControl{Item: item, Checked: st.Checked, Notes: st.Notes})
	}
	return out
}

// Get returns the state for a catalogue item.
func (c Checklist) Get(item string) (SafetyControl, bool) {
	st, ok := c.state[item]
	if !ok {
		return SafetyControl{}, false
	}
	return SafetyControl{Item: item, Checked: st.Checked, Notes: st.Notes}, true
}

// SetChecked toggles a catalogue entry. Unknown items are ignored and
// reported false; the checklist never grows.
func (c Checklist) SetChecked(item string, checked bool) bool {
	st, ok := c.state[item]
	if !ok {
		return false
	}
	st.Checked = checked
	return true
}

// SetNotes annotates a catalogue entry.
func (c Checklist) SetNotes(item, notes string) bool {
	st, ok := c.state[item]
	if !ok {
		return false
	}
	st.Notes = notes
	return true
}

// AnyChecked reports whether at least one entry is checked.
func (c Checklist) AnyChecked() bool {
	for _, st := range c.state {
		if st.Checked {
			return true
		}
	}
	return false
}

// Reset returns every entry to unchecked with cleared notes.
func (c Checklist) Reset() {
	for _, st := range c.state {
		st.Checked = false
		st.Notes = ""
	}
}

// Clone returns an independent copy sharing no state.
func (c Checklist) Clone() Checklist {
	out := Checklist{order: append([]string(nil), c.order...), state: make(map[string]*controlState, len(c.state))}
	for item, st := range c.state {
		cp := *st
		out.state[item] = &cp
	}
	return out
}

func (c Checklist) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Items())
}

func (c *Checklist) UnmarshalJSON(b []byte) error {
	var items []SafetyControl
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	labels := make([]string, 0, len(items))
	for _, it := range items {
		labels = append(labels, it.Item)
	}
	*c = NewChecklist(labels)
	for _, it := range items {
		c.SetChecked(it.Item, it.Checked)
		c.SetNotes(it.Item, it.Notes)
	}
	return nil
}
