// Package forms validates user-supplied book and member input before it
// reaches the lending service, which passes values through unchecked.
package forms

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// BookInput is a book as typed by a user or read from a manifest.
type BookInput struct {
	Title  string `yaml:"title" validate:"required,max=200"`
	Author string `yaml:"author" validate:"required,max=200"`
	ISBN   string `yaml:"isbn" validate:"omitempty,max=17"`
}

// MemberInput is a member as typed by a user or read from a manifest.
// MemberNumber may be blank; Normalize derives one from the name.
type MemberInput struct {
	Name         string `yaml:"name" validate:"required,max=200"`
	Email        string `yaml:"email" validate:"required,email"`
	MemberNumber string `yaml:"member_number" validate:"required,max=32"`
}

// Normalize trims every field.
func (b *BookInput) Normalize() {
	b.Title = strings.TrimSpace(b.Title)
	b.Author = strings.TrimSpace(b.Author)
	b.ISBN = strings.TrimSpace(b.ISBN)
}

// Normalize trims every field and fills a blank member number.
func (m *MemberInput) Normalize() {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.MemberNumber = strings.TrimSpace(m.MemberNumber)
	if m.MemberNumber == "" && m.Name != "" {
		m.MemberNumber = DeriveMemberNumber(m.Name)
	}
}

// Validate checks v against its struct tags and returns a readable error.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid input: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

func fieldName(f string) string {
	switch f {
	case "ISBN":
		return "isbn"
	case "MemberNumber":
		return "member number"
	}
	return strings.ToLower(f)
}

// DeriveMemberNumber builds a member number from up to three letters of the
// name and six random hex digits, e.g. "PER-1A2B3C".
func DeriveMemberNumber(name string) string {
	var prefix strings.Builder
	for _, r := range name {
		if prefix.Len() >= 3 {
			break
		}
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			prefix.WriteRune(unicode.ToUpper(r))
		}
	}
	if prefix.Len() == 0 {
		prefix.WriteString("MEM")
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return prefix.String() + "-" + strings.ToUpper(suffix)
}
