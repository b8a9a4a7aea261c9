package wizard_test

import (
	"testing"

	"permitflow/internal/domain"
	"permitflow/internal/wizard"
)

func TestAddFormsDedupesAndNumbers(t *testing.T) {
	d := wizard.NewDraft(testCatalogue)
	added := wizard.AddForms(d, []string{"form-a", "form-b", "form-a", ""})
	if len(added) != 2 {
		t.Fatalf("added = %v", added)
	}
	if len(d.AttachedForms) != 2 {
		t.Fatalf("attachments = %+v", d.AttachedForms)
	}
	if d.AttachedForms[0].Order != 1 || d.AttachedForms[1].Order != 2 {
		t.Fatalf("orders = %+v", d.AttachedForms)
	}
	for _, a := range d.AttachedForms {
		if a.Mandatory {
			t.Fatalf("manual attachment marked mandatory: %+v", a)
		}
	}
	// Re-adding an attached form is a silent no-op.
	if added := wizard.AddForms(d, []string{"form-b"}); len(added) != 0 {
		t.Fatalf("duplicate added: %v", added)
	}
}

func TestRemoveFormLeavesGaps(t *testing.T) {
	d := wizard.NewDraft(testCatalogue)
	wizard.AddForms(d, []string{"form-a", "form-b", "form-c"})
	if !wizard.RemoveForm(d, "form-b") {
		t.Fatal("remove failed")
	}
	if wizard.RemoveForm(d, "form-b") {
		t.Fatal("second remove should report false")
	}
	// Orders keep their gap; the next addition numbers past the max.
	if d.AttachedForms[0].Order != 1 || d.AttachedForms[1].Order != 3 {
		t.Fatalf("orders renumbered: %+v", d.AttachedForms)
	}
	wizard.AddForms(d, []string{"form-d"})
	if got := d.AttachedForms[2].Order; got != 4 {
		t.Fatalf("new order = %d, want 4", got)
	}
}

func TestAttachFromTemplateReplaces(t *testing.T) {
	d := wizard.NewDraft(testCatalogue)
	wizard.AddForms(d, []string{"manual-1", "manual-2"})
	wizard.AttachFromTemplate(d, []domain.FormAttachment{
		{FormID: "tpl-form", Mandatory: true, Order: 1, Condition: "siempre"},
	})
	if len(d.AttachedForms) != 1 || d.AttachedForms[0].FormID != "tpl-form" {
		t.Fatalf("attachments = %+v", d.AttachedForms)
	}
	if !d.AttachedForms[0].Mandatory || d.AttachedForms[0].Condition != "siempre" {
		t.Fatalf("template attachment mangled: %+v", d.AttachedForms[0])
	}
}

func TestSortedForms(t *testing.T) {
	d := wizard.NewDraft(testCatalogue)
	d.AttachedForms = []domain.FormAttachment{
		{FormID: "c", Order: 5},
		{FormID: "a", Order: 1},
		{FormID: "b", Order: 3},
	}
	sorted := wizard.SortedForms(d)
	if sorted[0].FormID != "a" || sorted[1].FormID != "b" || sorted[2].FormID != "c" {
		t.Fatalf("sorted = %+v", sorted)
	}
	// The draft's own slice is untouched.
	if d.AttachedForms[0].FormID != "c" {
		t.Fatalf("draft slice mutated: %+v", d.AttachedForms)
	}
}
