package store

// String returns a pointer to value for use in Fields.
func String(value string) *string {
	return &value
}
