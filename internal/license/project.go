package license

import (
	"fmt"
	"strings"
	"time"
)

// Project is a licensed client deployment.
type Project struct {
	ID         string    `json:"id"`
	Name       string    `json:"project_name"`
	Identifier string    `json:"project_identifier"`
	Address    *string   `json:"client_ip_address"`
	Status     Status    `json:"license_status"`
	Notes      *string   `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewProject carries the caller-supplied attributes of a project to create.
type NewProject struct {
	Name       string
	Identifier string
	Address    string
	Notes      string
}

// Normalize trims the input and checks required fields.
func (n NewProject) Normalize() (NewProject, error) {
	n.Name = strings.TrimSpace(n.Name)
	n.Identifier = strings.TrimSpace(n.Identifier)
	n.Address = strings.TrimSpace(n.Address)
	if n.Name == "" || n.Identifier == "" {
		return NewProject{}, fmt.Errorf("%w: project name and identifier are required", ErrInvalidInput)
	}
	return n, nil
}

// Field names accepted by partial updates. They double as JSON keys.
const (
	FieldName       = "project_name"
	FieldIdentifier = "project_identifier"
	FieldAddress    = "client_ip_address"
	FieldNotes      = "notes"
)

// Field is one column assignment of a partial update. A nil Value clears an
// optional attribute.
type Field struct {
	Name  string
	Value *string
}

// ProjectPatch is a partial update: nil pointers are left unchanged.
type ProjectPatch struct {
	Name       *string `json:"project_name"`
	Identifier *string `json:"project_identifier"`
	Address    *string `json:"client_ip_address"`
	Notes      *string `json:"notes"`
}

// Fields returns the assignments present in the patch in a stable order.
// Empty optional values become nil so storage clears them.
func (p ProjectPatch) Fields() []Field {
	var out []Field
	if p.Name != nil {
		v := strings.TrimSpace(*p.Name)
		out = append(out, Field{Name: FieldName, Value: &v})
	}
	if p.Identifier != nil {
		v := strings.TrimSpace(*p.Identifier)
		out = append(out, Field{Name: FieldIdentifier, Value: &v})
	}
	if p.Address != nil {
		out = append(out, Field{Name: FieldAddress, Value: optional(*p.Address)})
	}
	if p.Notes != nil {
		out = append(out, Field{Name: FieldNotes, Value: optional(*p.Notes)})
	}
	return out
}

// Validate rejects empty patches and blank required attributes.
func (p ProjectPatch) Validate() error {
	fields := p.Fields()
	if len(fields) == 0 {
		return fmt.Errorf("%w: no update fields provided", ErrInvalidInput)
	}
	for _, f := range fields {
		if (f.Name == FieldName || f.Name == FieldIdentifier) && *f.Value == "" {
			return fmt.Errorf("%w: %s cannot be empty", ErrInvalidInput, f.Name)
		}
	}
	return nil
}

// Apply returns a copy of project with the patch applied. In-memory stores use
// it; SQL stores translate Fields into an UPDATE statement instead.
func (p ProjectPatch) Apply(project Project) Project {
	for _, f := range p.Fields() {
		switch f.Name {
		case FieldName:
			project.Name = *f.Value
		case FieldIdentifier:
			project.Identifier = *f.Value
		case FieldAddress:
			project.Address = f.Value
		case FieldNotes:
			project.Notes = f.Value
		}
	}
	return project
}

// Names lists the supplied field names, used for audit details.
func (p ProjectPatch) Names() []string {
	fields := p.Fields()
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Summary counts projects per status for the dashboard overview.
type Summary struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
}
