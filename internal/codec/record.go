package codec

// EncodeRecord writes any plain JSON-serializable value to path.
func EncodeRecord(path string, v any) error {
	return writeJSON(path, v)
}

// DecodeRecord strictly decodes the JSON object at path into v. Unknown
// fields, trailing data and legacy object streams are rejected with a
// *SecurityError.
func DecodeRecord(path string, v any) error {
	data, err := readArtifact(path)
	if err != nil {
		return err
	}
	return decodeStrict(path, data, v)
}
