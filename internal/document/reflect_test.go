package document

import (
	"strings"
	"testing"
)

type Person struct {
	Name       string `json:"name,omitempty" jsonschema:"maxLength=255,default=Robot"`
	Age        int    `json:"age,omitempty" jsonschema:"required,minimum=0"`
	NumFingers *int   `json:"num_fingers,omitempty"`
}

type IdentifiedPerson struct {
	Identifier string `json:"identifier" jsonschema:"required" doc:"pk"`
	Name       string `json:"name,omitempty" jsonschema:"maxLength=255,default=Robot"`
	Age        int    `json:"age,omitempty" jsonschema:"required"`
}

type tagged struct {
	Color   string   `json:"color" jsonschema:"enum=red,enum=blue,description=Paint color"`
	Code    string   `json:"code" jsonschema:"pattern=^[A-Z]{3}$"`
	Tags    []string `json:"tags"`
	Ignored string   `json:"-"`
	hidden  string
}

func TestSchemaFor(t *testing.T) {
	t.Run("person", func(t *testing.T) {
		s, err := SchemaFor[Person]()
		if err != nil {
			t.Fatal(err)
		}
		if s.Name() != "Person" {
			t.Errorf("Name() = %q", s.Name())
		}
		if got := strings.Join(s.FieldNames(), ","); got != "name,age,num_fingers" {
			t.Errorf("FieldNames() = %s", got)
		}
		name, _ := s.Field("name")
		if name.Kind != KindString || name.MaxLength != 255 || name.Default != "Robot" || name.Required {
			t.Errorf("name = %+v", name)
		}
		age, _ := s.Field("age")
		if age.Kind != KindInt || !age.Required || age.Min == nil || *age.Min != 0 {
			t.Errorf("age = %+v", age)
		}
		fingers, _ := s.Field("num_fingers")
		if fingers.Kind != KindInt || fingers.Required || fingers.HasDefault() {
			t.Errorf("num_fingers = %+v", fingers)
		}
		if _, ok := s.PrimaryKey(); ok {
			t.Error("unexpected primary key")
		}
	})
	t.Run("primary key", func(t *testing.T) {
		s := MustSchemaFor[*IdentifiedPerson]()
		pk, ok := s.PrimaryKey()
		if !ok || pk.Name != "identifier" {
			t.Errorf("PrimaryKey() = %+v, %v", pk, ok)
		}
	})
	t.Run("tags", func(t *testing.T) {
		s := MustSchemaFor[tagged]()
		if got := strings.Join(s.FieldNames(), ","); got != "color,code,tags" {
			t.Errorf("FieldNames() = %s", got)
		}
		color, _ := s.Field("color")
		if len(color.Choices) != 2 || color.Description != "Paint color" {
			t.Errorf("color = %+v", color)
		}
		code, _ := s.Field("code")
		if code.Pattern == nil || !code.Pattern.MatchString("ABC") || code.Pattern.MatchString("abc") {
			t.Errorf("code pattern = %v", code.Pattern)
		}
		tags, _ := s.Field("tags")
		if tags.Kind != KindList {
			t.Errorf("tags kind = %s", tags.Kind)
		}
	})
	t.Run("not a struct", func(t *testing.T) {
		if _, err := SchemaFor[int](); err == nil {
			t.Error("SchemaFor[int]() expected error")
		}
	})
}

func TestDocumentDecode(t *testing.T) {
	s := MustSchemaFor[Person]()
	d, err := s.NewDocument(map[string]any{"age": 22, "num_fingers": 10})
	if err != nil {
		t.Fatal(err)
	}
	var p Person
	if err := d.Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Name != "Robot" || p.Age != 22 || p.NumFingers == nil || *p.NumFingers != 10 {
		t.Errorf("Decode() = %+v", p)
	}
}
