package naming

import (
	"fmt"
	"strconv"
	"strings"
)

// NameMustBeValid panics if the name does not follow the naming convention.
// A valid name is a dot-separated hierarchy of CamelCase elements, where
// elements of a series carry a square-bracket index, e.g. "SimMem.Bank[0]".
func NameMustBeValid(name string) {
	if err := ValidateName(name); err != nil {
		panic(err.Error())
	}
}

// ValidateName reports why a name does not follow the naming convention.
func ValidateName(name string) error {
	for _, token := range strings.Split(name, ".") {
		if err := validateToken(token); err != nil {
			return fmt.Errorf("name %q is not valid: %w", name, err)
		}
	}

	return nil
}

func validateToken(token string) error {
	elemName, indexPart, hasIndex := strings.Cut(token, "[")

	if elemName == "" {
		return fmt.Errorf("name element must not be empty")
	}

	if strings.ContainsAny(elemName, "_\"'-]") {
		return fmt.Errorf("name element %q contains an invalid character",
			elemName)
	}

	if elemName[0] < 'A' || elemName[0] > 'Z' {
		return fmt.Errorf("name element %q must start with a capital letter",
			elemName)
	}

	if !hasIndex {
		return nil
	}

	for _, index := range strings.Split(indexPart, "[") {
		if !strings.HasSuffix(index, "]") {
			return fmt.Errorf("name bracket must match in %q", token)
		}

		if _, err := strconv.Atoi(strings.TrimSuffix(index, "]")); err != nil {
			return fmt.Errorf("name index must be integer in %q", token)
		}
	}

	return nil
}

// BuildName builds a name from a parent name and an element name.
func BuildName(parentName, elementName string) string {
	if parentName == "" {
		return elementName
	}

	return parentName + "." + elementName
}

// BuildNameWithIndex builds a name from a parent name, an element name and an
// index.
func BuildNameWithIndex(parentName, elementName string, index int) string {
	return BuildName(parentName, elementName+"["+strconv.Itoa(index)+"]")
}
