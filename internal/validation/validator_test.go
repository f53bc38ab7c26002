package validation

import (
	"errors"
	"strings"
	"testing"
)

type sample struct {
	Name    string  `json:"nombreUsuario" validate:"required,max=5"`
	Email   string  `json:"correo" validate:"required,email"`
	Score   int     `json:"Puntuacion" validate:"gte=1,lte=10"`
	Born    *string `json:"FechaNacimiento,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Ignored string  `json:"-"`
}

func TestStructValid(t *testing.T) {
	born := "1970-01-31"
	if err := Struct(&sample{Name: "ana", Email: "ana@example.com", Score: 5, Born: &born}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStructUsesJSONNames(t *testing.T) {
	born := "31/01/1970"
	err := Struct(&sample{Name: "demasiado", Email: "nope", Score: 11, Born: &born})

	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Tag
	}
	want := map[string]string{
		"nombreUsuario":   "max",
		"correo":          "email",
		"Puntuacion":      "lte",
		"FechaNacimiento": "datetime",
	}
	for field, tag := range want {
		if fields[field] != tag {
			t.Errorf("field %s tag = %q, want %q (all: %v)", field, fields[field], tag, fields)
		}
	}
	if !strings.Contains(err.Error(), "correo debe ser un correo electrónico válido") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestStructRequired(t *testing.T) {
	err := Struct(&sample{Score: 1})
	if err == nil || !strings.Contains(err.Error(), "nombreUsuario es obligatorio") {
		t.Fatalf("err = %v", err)
	}
}
