package application

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Maxito7/agenda/internal/domain"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRegex = regexp.MustCompile(`^\+?\d{7,15}$`)
	// Solo letras, espacios, acentos y algunos caracteres especiales
	nameRegex = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚüÜñÑ\s\-']+$`)
)

// Longitudes de las columnas de persona
const (
	maxEmail     = 255
	maxTelefono  = 20
	maxDireccion = 200
)

// Validator contiene funciones de validación de datos
type Validator struct{}

// ValidateEmail valida el formato de un email
func (v *Validator) ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("el email es requerido")
	}

	if utf8.RuneCountInString(email) > maxEmail {
		return fmt.Errorf("el email no puede tener más de %d caracteres", maxEmail)
	}

	if !emailRegex.MatchString(email) {
		return fmt.Errorf("el formato del email '%s' no es válido", email)
	}

	return nil
}

// ValidatePhone valida el formato de un teléfono
func (v *Validator) ValidatePhone(phone string) error {
	if phone == "" {
		return fmt.Errorf("el teléfono es requerido")
	}

	// se guarda tal cual, con sus separadores
	if utf8.RuneCountInString(phone) > maxTelefono {
		return fmt.Errorf("el teléfono no puede tener más de %d caracteres", maxTelefono)
	}

	// Limpiar espacios, guiones y paréntesis
	cleanPhone := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)

	if !phoneRegex.MatchString(cleanPhone) {
		return fmt.Errorf("el teléfono '%s' debe tener entre 7 y 15 dígitos", phone)
	}

	return nil
}

// ValidateName valida que un nombre no esté vacío y tenga formato válido
func (v *Validator) ValidateName(name, fieldName string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("el %s es requerido", fieldName)
	}

	n := utf8.RuneCountInString(name)
	if n < 2 {
		return fmt.Errorf("el %s debe tener al menos 2 caracteres", fieldName)
	}
	if n > 50 {
		return fmt.Errorf("el %s no puede tener más de 50 caracteres", fieldName)
	}

	if !nameRegex.MatchString(name) {
		return fmt.Errorf("el %s contiene caracteres no válidos", fieldName)
	}

	return nil
}

// ValidateDireccion limita la longitud de la dirección
func (v *Validator) ValidateDireccion(direccion string) error {
	if utf8.RuneCountInString(direccion) > maxDireccion {
		return fmt.Errorf("la dirección no puede tener más de %d caracteres", maxDireccion)
	}
	return nil
}

// ValidatePersona valida todos los campos de la persona.
// Devuelve *domain.ErrorValidacion con todos los problemas encontrados, o nil.
func (v *Validator) ValidatePersona(p *domain.Persona) error {
	var errores []string

	if err := v.ValidateName(p.Nombre, "nombre"); err != nil {
		errores = append(errores, err.Error())
	}

	// Apellido opcional
	if strings.TrimSpace(p.Apellido) != "" {
		if err := v.ValidateName(p.Apellido, "apellido"); err != nil {
			errores = append(errores, err.Error())
		}
	}

	if err := v.ValidateEmail(p.Email); err != nil {
		errores = append(errores, err.Error())
	}

	if p.Telefono != nil && *p.Telefono != "" {
		if err := v.ValidatePhone(*p.Telefono); err != nil {
			errores = append(errores, err.Error())
		}
	}

	if p.Direccion != nil {
		if err := v.ValidateDireccion(*p.Direccion); err != nil {
			errores = append(errores, err.Error())
		}
	}

	if len(errores) > 0 {
		return &domain.ErrorValidacion{Errores: errores}
	}
	return nil
}
