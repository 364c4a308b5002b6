package keys

var baseTypes = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
	'V': "void",
	'N': "null",
}

var baseCodes = func() map[string]byte {
	out := make(map[string]byte, len(baseTypes))
	for code, name := range baseTypes {
		out[name] = code
	}
	return out
}()

// IsBaseCode reports whether c encodes a primitive, void or the null type.
func IsBaseCode(c byte) bool {
	_, ok := baseTypes[c]
	return ok
}

func BaseTypeName(code byte) string {
	return baseTypes[code]
}

func BaseTypeCode(name string) (byte, bool) {
	code, ok := baseCodes[name]
	return code, ok
}
