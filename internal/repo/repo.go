package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"permitflow/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// --- companies ---

func (r Repo) InsertCompany(ctx context.Context, c domain.Company) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO companies(id,name,created_at) VALUES (?,?,?)`,
		c.ID, c.Name, c.CreatedAt)
	return err
}

func (r Repo) GetCompany(ctx context.Context, id string) (domain.Company, error) {
	var c domain.Company
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,created_at FROM companies WHERE id=?`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// ListCompanies returns all companies for selection, newest first.
func (r Repo) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,created_at FROM companies ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Company
	for rows.Next() {
		var c domain.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// --- contractors ---

func (r Repo) InsertContractor(ctx context.Context, c domain.Contractor) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO contractors(id,company_id,full_name,cedula,status,created_at) VALUES (?,?,?,?,?,?)`,
		c.ID, c.CompanyID, c.FullName, c.Cedula, c.Status, c.CreatedAt)
	return err
}

// ListContractors returns a company's contractors, optionally filtered by
// status.
func (r Repo) ListContractors(ctx context.Context, companyID, status string) ([]domain.Contractor, error) {
	query := `SELECT id,company_id,full_name,cedula,status,created_at FROM contractors WHERE company_id=?`
	args := []any{companyID}
	if status != "" {
		query += ` AND status=?`
		args = append(args, status)
	}
	query += ` ORDER BY full_name`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Contractor
	for rows.Next() {
		var c domain.Contractor
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.FullName, &c.Cedula, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// --- departments ---

func (r Repo) InsertDepartment(ctx context.Context, d domain.Department) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO departments(id,company_id,name,code,created_at) VALUES (?,?,?,?,?)`,
		d.ID, d.CompanyID, d.Name, d.Code, d.CreatedAt)
	return err
}

// ListDepartments returns the approval departments configured for a company.
func (r Repo) ListDepartments(ctx context.Context, companyID string) ([]domain.Department, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,company_id,name,code,created_at FROM departments WHERE company_id=? ORDER BY name`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Department
	for rows.Next() {
		var d domain.Department
		if err := rows.Scan(&d.ID, &d.CompanyID, &d.Name, &d.Code, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// --- forms ---

func (r Repo) InsertForm(ctx context.Context, f domain.Form) error {
	sections, err := marshalJSON(f.Sections)
	if err != nil {
		return fmt.Errorf("marshal form sections: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO forms(id,name,description,sections_json,estimated_minutes,is_active,created_at) VALUES (?,?,?,?,?,?,?)`,
		f.ID, f.Name, nullable(f.Description), sections, f.EstimatedMinutes, boolInt(f.IsActive), f.CreatedAt)
	return err
}

func (r Repo) GetForm(ctx context.Context, id string) (domain.Form, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,name,COALESCE(description,''),COALESCE(sections_json,''),COALESCE(estimated_minutes,0),is_active,created_at FROM forms WHERE id=?`, id)
	return scanForm(row)
}

// ListForms returns forms, restricted to active ones when activeOnly is set.
func (r Repo) ListForms(ctx context.Context, activeOnly bool) ([]domain.Form, error) {
	query := `SELECT id,name,COALESCE(description,''),COALESCE(sections_json,''),COALESCE(estimated_minutes,0),is_active,created_at FROM forms`
	if activeOnly {
		query += ` WHERE is_active=1`
	}
	query += ` ORDER BY name`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Form
	for rows.Next() {
		f, err := scanFormRows(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

func scanForm(row *sql.Row) (domain.Form, error) {
	var f domain.Form
	var sections string
	var active int
	err := row.Scan(&f.ID, &f.Name, &f.Description, &sections, &f.EstimatedMinutes, &active, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return f, ErrNotFound
	}
	if err != nil {
		return f, err
	}
	f.IsActive = active != 0
	if sections != "" {
		if err := json.Unmarshal([]byte(sections), &f.Sections); err != nil {
			return f, fmt.Errorf("form %s sections: %w", f.ID, err)
		}
	}
	return f, nil
}

func scanFormRows(rows *sql.Rows) (domain.Form, error) {
	var f domain.Form
	var sections string
	var active int
	if err := rows.Scan(&f.ID, &f.Name, &f.Description, &sections, &f.EstimatedMinutes, &active, &f.CreatedAt); err != nil {
		return f, err
	}
	f.IsActive = active != 0
	if sections != "" {
		if err := json.Unmarshal([]byte(sections), &f.Sections); err != nil {
			return f, fmt.Errorf("form %s sections: %w", f.ID, err)
		}
	}
	return f, nil
}

// --- templates ---

func (r Repo) UpsertTemplate(ctx context.Context, t domain.Template) error {
	risks, err := marshalJSON(t.IdentifiedRisks)
	if err != nil {
		return err
	}
	tools, err := marshalJSON(t.ToolsToUse)
	if err != nil {
		return err
	}
	ppe, err := marshalJSON(t.RequiredPPE)
	if err != nil {
		return err
	}
	controls, err := marshalJSON(t.SafetyControls)
	if err != nil {
		return err
	}
	approvals, err := marshalJSON(t.RequiredApprovals)
	if err != nil {
		return err
	}
	forms, err := marshalJSON(t.RequiredForms)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO templates(id,name,category,work_description,default_location,risks_json,tools_json,ppe_json,controls_json,approvals_json,forms_json,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name,category=excluded.category,work_description=excluded.work_description,default_location=excluded.default_location,risks_json=excluded.risks_json,tools_json=excluded.tools_json,ppe_json=excluded.ppe_json,controls_json=excluded.controls_json,approvals_json=excluded.approvals_json,forms_json=excluded.forms_json,updated_at=excluded.updated_at`,
		t.ID, t.Name, t.Category, nullable(t.WorkDescription), nullable(t.DefaultLocation),
		risks, tools, ppe, controls, approvals, forms, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTemplate(ctx context.Context, id string) (domain.Template, error) {
	var t domain.Template
	var workDesc, location sql.NullString
	var risks, tools, ppe, controls, approvals, forms sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,category,work_description,default_location,risks_json,tools_json,ppe_json,controls_json,approvals_json,forms_json,created_at,updated_at FROM templates WHERE id=?`, id).
		Scan(&t.ID, &t.Name, &t.Category, &workDesc, &location, &risks, &tools, &ppe, &controls, &approvals, &forms, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.WorkDescription = workDesc.String
	t.DefaultLocation = location.String
	if err := unmarshalJSON(risks, &t.IdentifiedRisks); err != nil {
		return t, fmt.Errorf("template %s risks: %w", id, err)
	}
	if err := unmarshalJSON(tools, &t.ToolsToUse); err != nil {
		return t, fmt.Errorf("template %s tools: %w", id, err)
	}
	if err := unmarshalJSON(ppe, &t.RequiredPPE); err != nil {
		return t, fmt.Errorf("template %s ppe: %w", id, err)
	}
	if err := unmarshalJSON(controls, &t.SafetyControls); err != nil {
		return t, fmt.Errorf("template %s controls: %w", id, err)
	}
	if err := unmarshalJSON(approvals, &t.RequiredApprovals); err != nil {
		return t, fmt.Errorf("template %s approvals: %w", id, err)
	}
	if err := unmarshalJSON(forms, &t.RequiredForms); err != nil {
		return t, fmt.Errorf("template %s forms: %w", id, err)
	}
	return t, nil
}

// ListTemplates returns template headers (no merged field payloads),
// optionally filtered by category.
func (r Repo) ListTemplates(ctx context.Context, category string) ([]domain.Template, error) {
	query := `SELECT id,name,category,created_at,updated_at FROM templates`
	var args []any
	if category != "" {
		query += ` WHERE category=?`
		args = append(args, category)
	}
	query += ` ORDER BY name`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Template
	for rows.Next() {
		var t domain.Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Category, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) DeleteTemplate(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM templates WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- work permits ---

func (r Repo) InsertWorkPermitTx(ctx context.Context, tx *sql.Tx, p domain.WorkPermit) error {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return fmt.Errorf("marshal permit payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO work_permits(id,status,payload_json,created_by,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.Status, string(payload), p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) UpdateWorkPermitTx(ctx context.Context, tx *sql.Tx, p domain.WorkPermit) error {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return fmt.Errorf("marshal permit payload: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE work_permits SET payload_json=?,updated_at=? WHERE id=?`,
		string(payload), p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetWorkPermit(ctx context.Context, id string) (domain.WorkPermit, error) {
	var p domain.WorkPermit
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT id,status,payload_json,created_by,created_at,updated_at FROM work_permits WHERE id=?`, id).
		Scan(&p.ID, &p.Status, &payload, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(payload), &p.Payload); err != nil {
		return p, fmt.Errorf("permit %s payload: %w", id, err)
	}
	return p, nil
}

// --- events ---

func (r Repo) ListEvents(ctx context.Context, entityKind, entityID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events`
	var args []any
	if entityKind != "" {
		query += ` WHERE entity_kind=?`
		args = append(args, entityKind)
		if entityID != "" {
			query += ` AND entity_id=?`
			args = append(args, entityID)
		}
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EventsAfter returns events with id greater than after, oldest first. Used
// by the webhook dispatcher to page the log.
func (r Repo) EventsAfter(ctx context.Context, limit int, after int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the highest event id, or zero on an empty log.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}

// --- helpers ---

func marshalJSON(v any) (any, error) {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	if s == "null" || s == "[]" {
		return nil, nil
	}
	return s, nil
}

func unmarshalJSON(src sql.NullString, dst any) error {
	if !src.Valid || src.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(src.String), dst)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
