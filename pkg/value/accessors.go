package value

func (v *Value) AsString() (string, error) {
	if v.Kind() != KindString {
		return "", &TypeMismatchError{Want: KindString, Got: v.Kind()}
	}
	return v.str, nil
}

// AsInt returns the integer view of a Number. Decimal literals are truncated.
func (v *Value) AsInt() (int, error) {
	if v.Kind() != KindNumber {
		return 0, &TypeMismatchError{Want: KindNumber, Got: v.Kind()}
	}
	return int(v.integer), nil
}

func (v *Value) AsInt64() (int64, error) {
	if v.Kind() != KindNumber {
		return 0, &TypeMismatchError{Want: KindNumber, Got: v.Kind()}
	}
	return v.integer, nil
}

// AsFloat returns the double view of a Number.
func (v *Value) AsFloat() (float64, error) {
	if v.Kind() != KindNumber {
		return 0, &TypeMismatchError{Want: KindNumber, Got: v.Kind()}
	}
	return v.float, nil
}

func (v *Value) AsBool() (bool, error) {
	if v.Kind() != KindBool {
		return false, &TypeMismatchError{Want: KindBool, Got: v.Kind()}
	}
	return v.boolean, nil
}

func (v *Value) AsList() ([]*Value, error) {
	if v.Kind() != KindList {
		return nil, &TypeMismatchError{Want: KindList, Got: v.Kind()}
	}
	return v.Items(), nil
}

// AsObject returns a shallow copy of the attributes of an Object.
func (v *Value) AsObject() (map[string]*Value, error) {
	if v.Kind() != KindObject {
		return nil, &TypeMismatchError{Want: KindObject, Got: v.Kind()}
	}
	m := make(map[string]*Value, len(v.object))
	for k, item := range v.object {
		m[k] = item
	}
	return m, nil
}

// Attr returns a required attribute of an Object.
func (v *Value) Attr(key string) (*Value, error) {
	if v.Kind() != KindObject {
		return nil, &TypeMismatchError{Want: KindObject, Got: v.Kind()}
	}
	item := v.Get(key)
	if item == nil {
		return nil, &MissingAttributeError{Key: key}
	}
	return item, nil
}

// OptAttr returns an attribute of an Object, or Null when it is absent.
func (v *Value) OptAttr(key string) *Value {
	return orNull(v.Get(key))
}

func (v *Value) StringAttr(key string) (string, error) {
	item, err := v.Attr(key)
	if err != nil {
		return "", err
	}
	s, err := item.AsString()
	return s, withKey(err, key)
}

func (v *Value) IntAttr(key string) (int, error) {
	item, err := v.Attr(key)
	if err != nil {
		return 0, err
	}
	i, err := item.AsInt()
	return i, withKey(err, key)
}

func (v *Value) Int64Attr(key string) (int64, error) {
	item, err := v.Attr(key)
	if err != nil {
		return 0, err
	}
	i, err := item.AsInt64()
	return i, withKey(err, key)
}

func (v *Value) FloatAttr(key string) (float64, error) {
	item, err := v.Attr(key)
	if err != nil {
		return 0, err
	}
	f, err := item.AsFloat()
	return f, withKey(err, key)
}

func (v *Value) BoolAttr(key string) (bool, error) {
	item, err := v.Attr(key)
	if err != nil {
		return false, err
	}
	b, err := item.AsBool()
	return b, withKey(err, key)
}

func (v *Value) ListAttr(key string) ([]*Value, error) {
	item, err := v.Attr(key)
	if err != nil {
		return nil, err
	}
	l, err := item.AsList()
	return l, withKey(err, key)
}

// ObjectAttr returns a required attribute that must itself be an Object.
func (v *Value) ObjectAttr(key string) (*Value, error) {
	item, err := v.Attr(key)
	if err != nil {
		return nil, err
	}
	if item.Kind() != KindObject {
		return nil, &TypeMismatchError{Want: KindObject, Got: item.Kind(), Key: key}
	}
	return item, nil
}

func withKey(err error, key string) error {
	if tm, ok := err.(*TypeMismatchError); ok {
		tm.Key = key
		return tm
	}
	return err
}
