package wizard

import (
	"sort"

	"permitflow/internal/domain"
)

// AttachFromTemplate replaces the draft's attachments with the template's
// list verbatim; pre-existing manual attachments are discarded, not merged.
func AttachFromTemplate(d *Draft, forms []domain.FormAttachment) {
	d.AttachedForms = append([]domain.FormAttachment(nil), forms...)
}

// AddForms appends one optional attachment per form id not already present,
// numbered from the current maximum order. Already-attached ids are skipped
// silently. It returns the ids actually added.
func AddForms(d *Draft, formIDs []string) []string {
	present := make(map[string]bool, len(d.AttachedForms))
	next := 0
	for _, a := range d.AttachedForms {
		present[a.FormID] = true
		if a.Order > next {
			next = a.Order
		}
	}
	var added []string
	for _, id := range formIDs {
		if id == "" || present[id] {
			continue
		}
		next++
		d.AttachedForms = append(d.AttachedForms, domain.FormAttachment{
			FormID:    id,
			Mandatory: false,
			Order:     next,
		})
		present[id] = true
		added = append(added, id)
	}
	return added
}

// RemoveForm drops the attachment for formID. Remaining order values are not
// renumbered; gaps are fine because consumers sort by order.
func RemoveForm(d *Draft, formID string) bool {
	for i, a := range d.AttachedForms {
		if a.FormID == formID {
			d.AttachedForms = append(d.AttachedForms[:i], d.AttachedForms[i+1:]...)
			return true
		}
	}
	return false
}

// SortedForms returns the attachments ascending by order.
func SortedForms(d *Draft) []domain.FormAttachment {
	out := append([]domain.FormAttachment(nil), d.AttachedForms...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
