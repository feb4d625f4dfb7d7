package document

import (
	"slices"
	"testing"
)

const schemasYAML = `
- name: Person
  fields:
    - name: name
      type: string
      max_length: 255
      default: Robot
    - name: age
      type: int
      required: true
      min: 0
    - name: num_fingers
      type: int
- name: Ticket
  fields:
    - name: code
      type: string
      primary_key: true
      pattern: "^T-[0-9]+$"
    - name: priority
      type: string
      choices: [low, high]
      default: low
`

func TestParseSchemas(t *testing.T) {
	schemas, err := ParseSchemas([]byte(schemasYAML))
	if err != nil {
		t.Fatal(err)
	}
	if len(schemas) != 2 {
		t.Fatalf("got %d schemas, want 2", len(schemas))
	}
	person := schemas[0]
	if !slices.Equal(person.FieldNames(), []string{"name", "age", "num_fingers"}) {
		t.Errorf("FieldNames() = %v", person.FieldNames())
	}
	age, _ := person.Field("age")
	if !age.Required || age.Min == nil || *age.Min != 0 {
		t.Errorf("age = %+v", age)
	}
	ticket := schemas[1]
	pk, ok := ticket.PrimaryKey()
	if !ok || pk.Name != "code" || !pk.Required {
		t.Errorf("PrimaryKey() = %+v, %v", pk, ok)
	}
	d, _ := ticket.NewDocument(map[string]any{"code": "T-1"})
	if err := ticket.Validate(d, nil); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	_ = d.Set("priority", "urgent")
	_ = d.Set("code", "X")
	if err := ticket.Validate(d, nil); err == nil {
		t.Error("Validate() accepted a bad priority and code")
	}
}

func TestParseSchemasErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "- name: [unclosed"},
		{"duplicate", "- name: A\n- name: A\n"},
		{"bad pattern", "- name: A\n  fields:\n    - name: f\n      type: string\n      pattern: \"(\"\n"},
		{"bad type", "- name: A\n  fields:\n    - name: f\n      type: blob\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSchemas([]byte(tt.yaml)); err == nil {
				t.Error("ParseSchemas() expected error")
			}
		})
	}
}

func TestJSONSchema(t *testing.T) {
	s := MustSchema("Person",
		Field{Name: "name", Kind: KindString, MaxLength: 255, Default: "Robot"},
		Field{Name: "age", Kind: KindInt, Required: true, Min: ptr(0.)},
		Field{Name: "born", Kind: KindDateTime},
	)
	js := s.JSONSchema()
	if js.Title != "Person" || js.Type != "object" {
		t.Errorf("root = %q %q", js.Title, js.Type)
	}
	if !slices.Equal(js.Required, []string{"age"}) {
		t.Errorf("Required = %v", js.Required)
	}
	name, ok := js.Properties.Get("name")
	if !ok || name.Type != "string" || name.MaxLength == nil || *name.MaxLength != 255 || name.Default != "Robot" {
		t.Errorf("name = %+v", name)
	}
	age, _ := js.Properties.Get("age")
	if age.Type != "integer" || age.Minimum != "0" || age.MaxLength != nil {
		t.Errorf("age = %+v", age)
	}
	born, _ := js.Properties.Get("born")
	if born.Format != "date-time" {
		t.Errorf("born format = %q", born.Format)
	}
	if _, err := js.MarshalJSON(); err != nil {
		t.Errorf("MarshalJSON() = %v", err)
	}
}
