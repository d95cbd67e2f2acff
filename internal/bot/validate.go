package bot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ValidationError marks malformed user input for the current step. The
// engine recovers locally by re-prompting; it is never a system failure.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(msg string) error { return &ValidationError{Msg: msg} }

var (
	quantityRe = regexp.MustCompile(`^\d+$`)
	invoiceRe  = regexp.MustCompile(`^[A-Za-z0-9/-]+$`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	dateRe     = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
)

// parseQuantity accepts a positive integer with no sign or decimals.
func parseQuantity(s string) (int, error) {
	s = strings.TrimSpace(s)
	if !quantityRe.MatchString(s) {
		return 0, invalid("La cantidad debe ser un número entero positivo. Ejemplo: 3")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, invalid("La cantidad debe ser mayor que cero. Ejemplo: 3")
	}
	return n, nil
}

// parseInvoiceNumber accepts alphanumerics, dashes and slashes.
func parseInvoiceNumber(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !invoiceRe.MatchString(s) {
		return "", invalid("El N° de remito/factura solo admite letras, números, guiones y barras. Ejemplo: 0001-00023456")
	}
	return s, nil
}

// parseDate accepts dd/mm/yyyy with '.', '-' or '/' as separator and
// returns the canonical dd/mm/yyyy form. The day is checked against the
// actual days in the month, including the leap-year rule for February.
func parseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ".", "/")
	s = strings.ReplaceAll(s, "-", "/")

	m := dateRe.FindStringSubmatch(s)
	if m == nil {
		return "", invalid("Formato de fecha inválido. Usá dd/mm/aaaa. Ejemplo: 15/03/2024")
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	if year < 1900 {
		return "", invalid("El año debe ser 1900 o posterior.")
	}
	if month < 1 || month > 12 {
		return "", invalid("El mes debe estar entre 1 y 12.")
	}
	if day < 1 || day > daysInMonth(month, year) {
		return "", invalid(fmt.Sprintf("El día no es válido para el mes %02d/%d.", month, year))
	}
	return fmt.Sprintf("%02d/%02d/%04d", day, month, year), nil
}

func daysInMonth(month, year int) int {
	switch month {
	case 4, 6, 9, 11:
		return 30
	case 2:
		if isLeap(year) {
			return 29
		}
		return 28
	default:
		return 31
	}
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// parseEmail accepts a simple local@domain.tld shape.
func parseEmail(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !emailRe.MatchString(s) {
		return "", invalid("El correo no parece válido. Ejemplo: compras@proveedor.com.ar")
	}
	return s, nil
}

// nonEmpty trims and rejects blank free-text input.
func nonEmpty(s, msg string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", invalid(msg)
	}
	return s, nil
}
