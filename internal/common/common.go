package common

import "fmt"

// Renders ids and other Stringers for span attributes
func SliceToStringSlice[T fmt.Stringer](slice []T) []string {
	result := make([]string, len(slice))
	for i, val := range slice {
		result[i] = val.String()
	}

	return result
}
